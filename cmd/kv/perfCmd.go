package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for sKV replicas",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Histogram
}

// perfTest is a single benchmark. setup prepares the records of the sort keys
// and op runs one timed operation.
type perfTest struct {
	name  string
	setup bool
	op    func(hashKey, sortKey []byte) error
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for sKV replicas")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	tests := []perfTest{
		{name: "set", op: func(h, s []byte) error {
			_, err := rpcClient.Set(h, s, []byte("test"), 0)
			return err
		}},
		{name: "set-large", op: func(h, s []byte) error {
			_, err := rpcClient.Set(h, s, largeValue, 0)
			return err
		}},
		{name: "get", setup: true, op: func(h, s []byte) error {
			_, _, err := rpcClient.Get(h, s)
			return err
		}},
		{name: "exist", setup: true, op: func(h, s []byte) error {
			_, err := rpcClient.Exist(h, s)
			return err
		}},
		{name: "del", setup: true, op: func(h, s []byte) error {
			_, err := rpcClient.Del(h, s)
			return err
		}},
		{name: "multi-get", setup: true, op: func(h, _ []byte) error {
			_, _, err := rpcClient.MultiGet(h, nil, 10, 0)
			return ignoreIncomplete(err)
		}},
		{name: "sortkey-count", setup: true, op: func(h, _ []byte) error {
			_, _, err := rpcClient.SortKeyCount(h)
			return err
		}},
	}

	// Create results map
	results := make(map[string]perfResult)
	for _, test := range tests {
		if shouldSkip(test.name) {
			printResult(test.name, perfResult{})
			continue
		}
		result := benchmark(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func benchmark(test perfTest) perfResult {
	latency := gometrics.NewHistogram(gometrics.NewUniformSample(100_000))

	bench := testing.Benchmark(func(b *testing.B) {
		hashKey := []byte(fmt.Sprintf("%s-%s", perfKeyPrefix, test.name))
		getKey, iter := getKeys(test.name)

		if test.setup {
			iter(func(k []byte) {
				if _, err := rpcClient.Set(hashKey, k, []byte("test"), 0); err != nil {
					log.Printf("(%s) - error setting key: %v\n", test.name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k []byte) {
				if _, err := rpcClient.Del(hashKey, k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", test.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := test.op(hashKey, getKey(counter)); err != nil {
					log.Printf("(%s) - error: %v\n", test.name, err)
				}
				latency.Update(int64(time.Since(start)))
				counter++
			}
		})
	})

	return perfResult{bench: bench, latency: latency}
}

func ignoreIncomplete(err error) error {
	if errcode.CodeOf(err) == errcode.Incomplete {
		return nil
	}
	return err
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test sort keys and functions to work with them
func getKeys(prefix string) (func(int) []byte, func(func([]byte))) {
	keys := make([][]byte, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = []byte(fmt.Sprintf("%s-%d", prefix, i))
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) []byte {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func([]byte)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 || result.latency == nil {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.latency.Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Max",
		"Endpoints", "TimeoutMs", "ConnectionsPerEndpoint",
		"App", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		ps := result.latency.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			time.Duration(result.latency.Max()).String(),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutMillisecond),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			config.AppName,
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
