// Command replay rebuilds a quoter from its journal and prints the top of
// book, and optionally a quote, after every applied account record.
// With -republish the records are also written to a Kafka accounts topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"gigadex/domain/quote"
	"gigadex/infra/accountstore"
	"gigadex/infra/journal"
	"gigadex/infra/kafka"
	"gigadex/infra/logger"
	"gigadex/service"
	"gigadex/snapshot"
)

func main() {
	var (
		dir       = flag.String("journal", "data/journal", "journal directory")
		storeDir  = flag.String("store", "", "account store to start from, for truncated journals")
		inMint    = flag.String("input-mint", "", "quote this input mint after each record")
		amount    = flag.Uint64("amount", 0, "input amount for -input-mint")
		brokers   = flag.String("brokers", "", "comma separated brokers for -republish")
		republish = flag.String("republish", "", "accounts topic to write replayed records to")
		level     = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	log, err := logger.New(*level, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(log, *dir, *storeDir, *inMint, *amount, *brokers, *republish); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func run(log *zap.Logger, dir, storeDir, inMint string, amount uint64, brokers, topic string) error {
	var req *quote.Request
	if inMint != "" {
		k, err := solana.PublicKeyFromBase58(inMint)
		if err != nil {
			return fmt.Errorf("input-mint: %w", err)
		}
		req = &quote.Request{InputMint: k, InAmount: amount}
	}

	var base snapshot.Source
	if storeDir != "" {
		store, err := accountstore.Open(storeDir)
		if err != nil {
			return err
		}
		defer store.Close()
		base = store
	}

	var producer *kafka.Producer
	if topic != "" {
		if brokers == "" {
			return fmt.Errorf("-republish needs -brokers")
		}
		producer = kafka.NewProducer(strings.Split(brokers, ","), topic)
		defer producer.Close()
	}

	ctx := context.Background()
	_, lastSeq, err := service.ReplayJournal(dir, service.Deps{Log: log}, base, func(r *journal.Record, s *service.QuoteService) error {
		us, err := r.Updates()
		if err != nil {
			return err
		}
		if producer != nil {
			if err := producer.Send(ctx, us...); err != nil {
				return fmt.Errorf("republish seq %d: %w", r.Seq, err)
			}
		}

		line := fmt.Sprintf("seq=%d type=%s", r.Seq, r.Type)
		for _, u := range us {
			line += fmt.Sprintf(" %s@%d", u.Key, u.Slot)
		}
		if top, err := s.TopOfBook(); err == nil {
			line += fmt.Sprintf(" gen=%d bid=%s ask=%s", top.Generation, quote.FormatUnits(top.BestBid), quote.FormatUnits(top.BestAsk))
		} else {
			line += " (incomplete)"
		}
		if req != nil && s.Ready() {
			resp, err := s.Quote(*req)
			if err != nil {
				line += " quote_err=" + err.Error()
			} else {
				line += fmt.Sprintf(" out=%d fee=%d", resp.OutAmount, resp.FeeAmount)
			}
		}
		fmt.Println(line)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("replayed through seq %d\n", lastSeq)
	return nil
}
