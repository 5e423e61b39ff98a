package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go-firestore-admin/internal/backend"
	"go-firestore-admin/internal/config"
	"go-firestore-admin/internal/logger"
	"go-firestore-admin/internal/model"
	"go-firestore-admin/internal/productlist"
	"go-firestore-admin/internal/projection"
	productRepository "go-firestore-admin/internal/repository/product"

	"github.com/rs/zerolog/log"
)

// seedProduct is the JSON shape read from disk. Numbers may be given as JSON numbers or strings.
type seedProduct struct {
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Price    json.Number `json:"price"`
	Stock    json.Number `json:"stock"`
	Sales    json.Number `json:"sales"`
}

func main() {
	productFile := flag.String("product", "", "product JSON file to save")
	imagePath := flag.String("image", "", "optional image to upload with the product")
	updateId := flag.String("id", "", "update this product instead of adding one")
	deleteId := flag.String("delete", "", "delete this product")
	search := flag.String("q", "", "filter the printed table")
	flag.Parse()

	cnf := config.LoadConfigOrPanic()
	logger.Init(cnf.Log.Level, cnf.Log.Pretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := backend.Open(ctx, cnf)
	if err != nil {
		panic(err)
	}
	defer backends.Close()

	productRepo := productRepository.New(backends.DB, backends.Blobs)
	table := productlist.NewTable(productRepo)
	if err := table.Load(ctx); err != nil {
		panic(err)
	}

	if *deleteId != "" {
		if err := table.Delete(ctx, *deleteId); err != nil {
			fmt.Println("Error deleting product:", err)
			os.Exit(1)
		}
		fmt.Println("Product deleted:", *deleteId)
	}

	if *productFile != "" {
		if err := readProductFromJsonAndSave(ctx, table, *productFile, *imagePath, *updateId); err != nil {
			os.Exit(1)
		}
	}

	printTable(table.Search(*search))
	printDistribution(productRepo)
}

func readProductFromJsonAndSave(ctx context.Context, table *productlist.Table, filePath, imagePath, id string) error {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		fmt.Println("Error opening JSON file:", err)
		return err
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		fmt.Println("Error reading JSON file:", err)
		return err
	}

	var seed seedProduct
	if err := json.Unmarshal(byteValue, &seed); err != nil {
		fmt.Println("Error unmarshalling JSON:", err)
		return err
	}

	draft := model.ProductDraft{
		Name:     seed.Name,
		Category: seed.Category,
		Price:    seed.Price.String(),
		Stock:    seed.Stock.String(),
		Sales:    seed.Sales.String(),
	}

	if imagePath != "" {
		img, err := os.Open(imagePath)
		if err != nil {
			fmt.Println("Error opening image:", err)
			return err
		}
		defer img.Close()

		info, err := img.Stat()
		if err != nil {
			return err
		}
		draft.Image = &model.ImageFile{
			Filename: filepath.Base(imagePath),
			Size:     info.Size(),
			Content:  img,
			OnProgress: func(pct float64) {
				fmt.Printf("\rUploading %s: %3.0f%%", filepath.Base(imagePath), pct)
			},
		}
	}

	p, err := table.Save(ctx, id, draft)
	if draft.Image != nil {
		fmt.Println()
	}
	if err != nil {
		fmt.Println("Error saving product:", err)
		return err
	}

	fmt.Println("Product saved successfully:", p.Id)
	return nil
}

func printTable(products []model.Product) {
	fmt.Printf("%-22s %-24s %-16s %10s %6s %6s\n", "ID", "NAME", "CATEGORY", "PRICE", "STOCK", "SALES")
	for _, p := range products {
		fmt.Printf("%-22s %-24s %-16s %10s %6d %6d\n", p.Id, p.Name, p.Category, p.Price.StringFixed(2), p.Stock, p.Sales)
	}
}

// printDistribution takes one projection from a short-lived view subscription.
func printDistribution(repo productRepository.ProductRepository) {
	snapshots := make(chan projection.Snapshot, 1)
	sub := projection.NewView(repo).Subscribe(func(s projection.Snapshot, err error) {
		if err != nil {
			log.Error().Err(err).Msg("failed to compute category distribution")
			return
		}
		select {
		case snapshots <- s:
		default:
		}
	})
	defer sub.Unsubscribe()

	select {
	case s := <-snapshots:
		fmt.Println("\nCategory distribution:")
		for _, entry := range s.Entries() {
			fmt.Printf("  %-16s %d\n", entry.Name, entry.Value)
		}
	case <-sub.Done():
	case <-time.After(10 * time.Second):
		fmt.Println("Timed out waiting for the category distribution")
	}
}
