// Package main — cmd/frauddetect-bench/main.go
//
// Pipeline throughput benchmark.
//
// Measures end-to-end pipeline throughput (transactions processed per
// second) across a range of batch sizes. Each batch size is run
// several rounds; min/avg/max throughput is printed to stdout.
//
// # Measurement scope
//
// Storage write cost is excluded from all measurements: the pipeline
// runs with storage.Discard (a no-op) and model.Bench (always returns
// false, no RNG). What is measured:
//
//   - Producer: UUID generation, amount sampling, batch assembly
//   - Consumer: buffer read, Modelizer call, buffer write
//   - Logger: buffer read, PendingTransaction construction, storage call
//   - Both Concurrent buffer types: the Gosched yield loop
//
// What is NOT measured: any real I/O, storage allocation, alarm
// delivery (the log alarm sink writes through zap.NewNop()).
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/alarm"
	"github.com/fraudpipeline/core/internal/buffer"
	"github.com/fraudpipeline/core/internal/consumer"
	"github.com/fraudpipeline/core/internal/logger"
	"github.com/fraudpipeline/core/internal/model"
	"github.com/fraudpipeline/core/internal/modelizer"
	"github.com/fraudpipeline/core/internal/producer"
	"github.com/fraudpipeline/core/internal/storage"
)

// iterations drives the shutdown cascade: the producer completes after
// this many batches, closes buffer1, which eventually stops the
// consumer and logger.
const iterations = 1_000

// rounds is the number of pipeline runs averaged per batch size.
const rounds = 5

// batchSizes are applied uniformly to n1Max, n2Max, and n3Max.
var batchSizes = []int{1_000, 2_000, 5_000, 10_000, 20_000, 50_000, 100_000}

// benchSeed is fixed so every round is reproducible.
const benchSeed = 42

func main() {
	fmt.Printf("bench: iterations=%d rounds=%d (storage cost excluded)\n", iterations, rounds)
	fmt.Printf("%10s | %10s | %10s | %10s | %10s\n", "batch_size", "total_tx", "min tx/s", "avg tx/s", "max tx/s")
	fmt.Println("-----------+------------+------------+------------+-----------")

	for _, batchSize := range batchSizes {
		var totalTxFirst int
		minTPS := float64(^uint(0) >> 1)
		var maxTPS, sumTPS float64

		for round := 0; round < rounds; round++ {
			totalTx, elapsed := runBench(batchSize)
			tps := float64(totalTx) / elapsed.Seconds()
			if round == 0 {
				totalTxFirst = totalTx
			}
			if tps < minTPS {
				minTPS = tps
			}
			if tps > maxTPS {
				maxTPS = tps
			}
			sumTPS += tps
		}

		avgTPS := sumTPS / float64(rounds)

		fmt.Printf("%10s | %10s | %10s | %10s | %10s\n",
			fmtNumber(batchSize), fmtNumber(totalTxFirst),
			fmtNumber(int(minTPS)), fmtNumber(int(avgTPS)), fmtNumber(int(maxTPS)))
	}
}

// runBench runs the full pipeline once with the given batchSize and
// returns the total transactions logged and the elapsed wall time.
func runBench(batchSize int) (int, time.Duration) {
	seed := uint64(benchSeed)

	prodCfg, err := producer.NewConfig(batchSize)
	if err != nil {
		panic(err)
	}
	prodCfg.WithIterations(iterations).WithSeed(seed)

	consCfg, err := consumer.NewConfig(batchSize)
	if err != nil {
		panic(err)
	}
	consCfg.WithSeed(seed)

	logCfg, err := logger.NewConfig(batchSize)
	if err != nil {
		panic(err)
	}
	logCfg.WithSeed(seed)

	buf1 := buffer.NewConcurrent()
	buf2 := buffer.NewConcurrent2()

	mdl := model.NewBench()
	mdlz := modelizer.New(mdl)
	al := alarm.NewLog(zap.NewNop())
	disc := storage.NewDiscard()

	prod := producer.New(*prodCfg, nil)
	cons := consumer.New(*consCfg, nil, nil)
	lg := logger.New(*logCfg, nil)

	ctx := context.Background()
	start := time.Now()

	consumerDone := make(chan error, 1)
	go func() {
		err := cons.Run(ctx, buf1, mdlz, al, buf2)
		buf2.Close()
		consumerDone <- err
	}()

	loggerDone := make(chan error, 1)
	go func() {
		loggerDone <- lg.Run(ctx, buf2, disc)
	}()

	producerErr := prod.Run(ctx, buf1)
	buf1.Close()

	if producerErr != nil {
		panic(producerErr)
	}
	if err := <-consumerDone; err != nil {
		panic(err)
	}
	if err := <-loggerDone; err != nil {
		panic(err)
	}

	elapsed := time.Since(start)
	return disc.Count(), elapsed
}

// fmtNumber formats n with space-separated thousands groups.
func fmtNumber(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, ch := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, ch)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
