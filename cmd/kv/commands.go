package kv

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/client"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [hashKey] [sortKey] [value]",
		Short: "Sets the value of a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetInt32("ttl")
			info, err := rpcClient.Set([]byte(args[0]), []byte(args[1]), []byte(args[2]), ttl)
			if err != nil {
				return err
			}
			fmt.Printf("set successfully (%s)\n", formatInfo(info))
			return nil
		},
	}
	msetCmd = &cobra.Command{
		Use:   "mset [hashKey] [sortKey=value]...",
		Short: "Sets several records of one hash key atomically",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetInt32("ttl")
			kvs := make([]common.KeyValue, 0, len(args)-1)
			for _, arg := range args[1:] {
				sortKey, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid record %q (expected sortKey=value)", arg)
				}
				kvs = append(kvs, common.KeyValue{Key: []byte(sortKey), Value: []byte(value)})
			}
			info, err := rpcClient.MultiSet([]byte(args[0]), kvs, ttl)
			if err != nil {
				return err
			}
			fmt.Printf("mset successfully (%s)\n", formatInfo(info))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [hashKey] [sortKey]",
		Short: "Reads the value of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _, err := rpcClient.Get([]byte(args[0]), []byte(args[1]))
			if errcode.CodeOf(err) == errcode.NotFound {
				fmt.Printf("hashKey=%s, sortKey=%s, found=false\n", args[0], args[1])
				return nil
			} else if err != nil {
				return err
			}
			fmt.Printf("hashKey=%s, sortKey=%s, found=true, value=%s\n", args[0], args[1], value)
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [hashKey] [sortKey]...",
		Short: "Reads several records of one hash key, all of them if no sort key is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxCount, maxSize := fetchLimits(cmd)
			var sortKeys [][]byte
			for _, arg := range args[1:] {
				sortKeys = append(sortKeys, []byte(arg))
			}
			kvs, _, err := rpcClient.MultiGet([]byte(args[0]), sortKeys, maxCount, maxSize)
			if err != nil && errcode.CodeOf(err) != errcode.Incomplete {
				return err
			}
			for _, kv := range kvs {
				fmt.Printf("%s=%s\n", kv.Key, kv.Value)
			}
			printIncomplete(err)
			return nil
		},
	}
	sortKeysCmd = &cobra.Command{
		Use:   "sortkeys [hashKey]",
		Short: "Lists the sort keys of a hash key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxCount, maxSize := fetchLimits(cmd)
			sortKeys, _, err := rpcClient.MultiGetSortKeys([]byte(args[0]), maxCount, maxSize)
			if err != nil && errcode.CodeOf(err) != errcode.Incomplete {
				return err
			}
			for _, sortKey := range sortKeys {
				fmt.Printf("%s\n", sortKey)
			}
			printIncomplete(err)
			return nil
		},
	}
	existCmd = &cobra.Command{
		Use:   "exist [hashKey] [sortKey]",
		Short: "Checks if a record exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := rpcClient.Exist([]byte(args[0]), []byte(args[1]))
			found := err == nil
			if errcode.CodeOf(err) != errcode.NotFound && err != nil {
				return err
			}
			fmt.Printf("hashKey=%s, sortKey=%s, found=%t\n", args[0], args[1], found)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [hashKey]",
		Short: "Counts the records of a hash key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _, err := rpcClient.SortKeyCount([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("hashKey=%s, count=%d\n", args[0], count)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [hashKey] [sortKey]",
		Short: "Deletes a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcClient.Del([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("delete successfully (%s)\n", formatInfo(info))
			return nil
		},
	}
	mdelCmd = &cobra.Command{
		Use:   "mdel [hashKey] [sortKey]...",
		Short: "Deletes several records of one hash key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sortKeys [][]byte
			for _, arg := range args[1:] {
				sortKeys = append(sortKeys, []byte(arg))
			}
			count, info, err := rpcClient.MultiDel([]byte(args[0]), sortKeys)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d records (%s)\n", count, formatInfo(info))
			return nil
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [hashKey] [sortKey]",
		Short: "Prints the remaining time to live of a record in seconds (-1 = never expires)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _, err := rpcClient.TTL([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("hashKey=%s, sortKey=%s, ttl=%d\n", args[0], args[1], ttl)
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [hashKey] [startSortKey] [stopSortKey]",
		Short: "Scans the records of a hash key in sort key order",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, stop []byte
			if len(args) > 1 {
				start = []byte(args[1])
			}
			if len(args) > 2 {
				stop = []byte(args[2])
			}

			options := scanOptions(cmd)
			options.StopInclusive, _ = cmd.Flags().GetBool("stop-inclusive")
			options.NoValue, _ = cmd.Flags().GetBool("no-value")

			scanner, err := rpcClient.GetScanner([]byte(args[0]), start, stop, options)
			if err != nil {
				return err
			}
			defer scanner.Close()

			n, err := drain(scanner, func(item client.ScanItem) {
				fmt.Printf("%s : %s=%s\n", item.HashKey, item.SortKey, item.Value)
			})
			fmt.Printf("scanned %d records\n", n)
			return err
		},
	}
	splitScanCmd = &cobra.Command{
		Use:   "split-scan",
		Short: "Scans the whole table with several concurrent scanners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			split, _ := cmd.Flags().GetInt("split")
			scanners, err := rpcClient.GetUnorderedScanners(split, scanOptions(cmd))
			if err != nil {
				return err
			}

			var (
				mu    sync.Mutex
				wg    sync.WaitGroup
				total int
				errs  []error
			)
			for i, scanner := range scanners {
				wg.Add(1)
				go func(i int, scanner client.IScanner) {
					defer wg.Done()
					defer scanner.Close()
					n, err := drain(scanner, func(item client.ScanItem) {
						mu.Lock()
						fmt.Printf("[%d] %s : %s=%s\n", i, item.HashKey, item.SortKey, item.Value)
						mu.Unlock()
					})
					mu.Lock()
					total += n
					if err != nil {
						errs = append(errs, fmt.Errorf("scanner %d: %w", i, err))
					}
					mu.Unlock()
				}(i, scanner)
			}
			wg.Wait()

			fmt.Printf("scanned %d records with %d scanners\n", total, len(scanners))
			if len(errs) > 0 {
				return errs[0]
			}
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Int32("ttl", 0, util.WrapString("Time to live in seconds (0 = never expires)"))
	msetCmd.Flags().Int32("ttl", 0, util.WrapString("Time to live in seconds (0 = never expires)"))

	for _, cmd := range []*cobra.Command{mgetCmd, sortKeysCmd} {
		cmd.Flags().Int32("max-count", 0, util.WrapString("Maximum number of records to fetch (0 = no limit)"))
		cmd.Flags().Int32("max-size", 0, util.WrapString("Maximum total size of the fetched records in bytes (0 = no limit)"))
	}

	for _, cmd := range []*cobra.Command{scanCmd, splitScanCmd} {
		cmd.Flags().Int32("batch-size", client.DefaultScanBatchSize, util.WrapString("Number of records fetched per request"))
	}
	scanCmd.Flags().Bool("stop-inclusive", false, util.WrapString("Whether the stop sort key is part of the scan"))
	scanCmd.Flags().Bool("no-value", false, util.WrapString("Only fetch the keys"))
	splitScanCmd.Flags().Int("split", 4, util.WrapString("Maximum number of concurrent scanners"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatInfo(info client.Info) string {
	return fmt.Sprintf("app=%d, partition=%d, decree=%d, server=%s", info.AppID, info.PartitionIndex, info.Decree, info.Server)
}

func fetchLimits(cmd *cobra.Command) (int32, int32) {
	maxCount, _ := cmd.Flags().GetInt32("max-count")
	maxSize, _ := cmd.Flags().GetInt32("max-size")
	return maxCount, maxSize
}

func printIncomplete(err error) {
	if errcode.CodeOf(err) == errcode.Incomplete {
		fmt.Println("(result truncated)")
	}
}

func scanOptions(cmd *cobra.Command) client.ScanOptions {
	options := client.DefaultScanOptions()
	options.BatchSize, _ = cmd.Flags().GetInt32("batch-size")
	return options
}

// drain reads scanner until it is exhausted and returns the number of records
func drain(scanner client.IScanner, fn func(client.ScanItem)) (int, error) {
	n := 0
	for {
		item, ok, err := scanner.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		fn(item)
		n++
	}
}
