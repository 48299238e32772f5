// Command memodispatch runs a batch of toy encryption requests through a
// memoizing work dispatcher, and reports which results were computed and which
// were served from the cache.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.alexhamlin.co/memodispatch/internal/log"
	"go.alexhamlin.co/memodispatch/internal/modexp"
	"go.alexhamlin.co/memodispatch/internal/work"
)

const envPrefix = "MEMODISPATCH"

func main() {
	defer log.Sync()
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "memodispatch",
		Short:        "Compute toy ciphertexts with deduplicated, cached work",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}
	registerFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func registerFlags(flags *pflag.FlagSet) {
	flags.Int("workers", 2, "Number of worker goroutines")
	flags.StringSlice("requests", []string{"1", "1", "1"}, "Keys to request, in order")
	flags.Int("bits", 16, "Size in bits of each prime in the toy key pair")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
}

func run(ctx context.Context, v *viper.Viper) error {
	if v.GetBool("verbose") {
		log.EnableVerbose()
	}

	keys, err := parseKeys(v.GetStringSlice("requests"))
	if err != nil {
		return err
	}

	pair, err := modexp.GenerateKeyPair(v.GetInt("bits"), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		return err
	}
	log.Verbosef("[main] generated key pair with modulus %d", pair.Public.N)

	d, err := work.NewDispatcher(v.GetInt("workers"), encryptHandler(pair))
	if err != nil {
		return err
	}

	var group errgroup.Group
	for _, key := range keys {
		group.Go(func() error { return d.Submit(key) })
	}
	if err := group.Wait(); err != nil {
		return err
	}
	d.RequestExit()

	events, err := d.Results().Collect(ctx)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Err != nil {
			fmt.Printf("%d\t%v\terror: %v\n", ev.Key, ev.Provenance, ev.Err)
			continue
		}
		fmt.Printf("%d\t%v\t%#x\n", ev.Key, ev.Provenance, ev.Value)
	}
	<-d.Done()

	stats := d.Stats()
	log.Printf("[main] %d requests for %d keys: %d computed, %d from cache",
		len(events), len(lo.Uniq(keys)), stats.Computed, stats.CacheHits)
	return nil
}

func parseKeys(raw []string) ([]uint64, error) {
	keys := make([]uint64, 0, len(raw))
	for _, s := range raw {
		key, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid request key %q: %w", s, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// encryptHandler encrypts each key with the pair's public key, and checks that
// the private key recovers it.
func encryptHandler(pair modexp.KeyPair) work.Handler[uint64, uint64] {
	return func(_ context.Context, key uint64) (uint64, error) {
		if key >= pair.Public.N {
			return 0, fmt.Errorf("key %d does not fit under modulus %d", key, pair.Public.N)
		}
		cipher := pair.Public.Apply(key)
		if plain := pair.Private.Apply(cipher); plain != key {
			return 0, fmt.Errorf("round trip of %d produced %d", key, plain)
		}
		return cipher, nil
	}
}
