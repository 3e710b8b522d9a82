// printtest sends a single test receipt to the printer, bypassing the
// backend connection and the queue. Useful when setting up a new till.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/printrelay/printrelay/internal/config"
	"github.com/printrelay/printrelay/internal/escpos"
	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/printer"
)

func main() {
	configPath := flag.String("config", "printrelay.yaml", "path to config file")
	addr := flag.String("addr", "", "printer address, overrides config")
	flag.Parse()

	logger.Init("printtest", "info", "console")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if *addr != "" {
		cfg.Printer.Address = *addr
	}

	change := jobs.Price(1.50)
	receipt := &jobs.Receipt{
		PurchaseID: 1,
		Items: []jobs.PurchasedItem{
			{Item: jobs.Item{Name: "Caffe", Price: 1.20}, Quantity: 2},
			{Item: jobs.Item{Name: "Cornetto", Price: 1.10}, Quantity: 1},
		},
		Total:         3.50,
		PaymentMethod: "CONTANTI",
		GivenAmount:   5.00,
		Change:        &change,
		PurchaseDate:  time.Now().Format("02/01/2006 15:04"),
	}

	encoder := escpos.New(cfg.Receipt.Width, cfg.Receipt.Header, cfg.Receipt.Footer)
	raw, err := encoder.Encode(receipt)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to encode test receipt")
	}

	transport := printer.NewTransport(cfg.Printer.Address, cfg.Printer.DialTimeout)
	defer transport.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Printer.SendTimeout)
	defer cancel()

	if err := transport.Send(ctx, raw); err != nil {
		logger.Logger.Fatal().Err(err).Str("addr", cfg.Printer.Address).Msg("Failed to print test receipt")
	}

	logger.Logger.Info().Str("addr", cfg.Printer.Address).Msg("Test receipt printed")
}
