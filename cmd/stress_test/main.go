package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rl1809/liora-bloom/internal/adapter/handler"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

const totalRequests = 50

// Fires concurrent checkouts of one cart from one device against a running
// server. Exactly one order may come out of it.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "storefront base URL")
	flag.Parse()

	device := uuid.NewString()
	client := resty.New().
		SetBaseURL(*baseURL+"/api/v1").
		SetHeader(handler.DeviceHeader, device).
		SetTimeout(10 * time.Second)

	var products []handler.ProductDTO
	resp, err := client.R().SetResult(&products).Get("/products")
	if err != nil || resp.StatusCode() != http.StatusOK {
		log.Fatalf("failed to list products: %v %s", err, resp.String())
	}
	if len(products) == 0 {
		log.Fatal("catalog is empty, seed some products first")
	}

	resp, err = client.R().
		SetBody(map[string]any{"product_id": products[0].ID}).
		Post("/cart/items")
	if err != nil || resp.StatusCode() != http.StatusCreated {
		log.Fatalf("failed to add to cart: %v %s", err, resp.String())
	}

	form := service.ShippingForm{
		FullName:     "Stress Test",
		Phone:        "000 000 0000",
		DeliveryDate: time.Now().AddDate(0, 0, 7).Format(time.DateOnly),
		Street:       "1 Load Street",
	}

	var placed, inFlight, emptyCart, other atomic.Int32
	var reference atomic.Value

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var receipt handler.ReceiptDTO
			var failure handler.ErrorResponse
			resp, err := client.R().
				SetBody(form).
				SetResult(&receipt).
				SetError(&failure).
				Post("/checkout")
			switch {
			case err != nil:
				other.Add(1)
			case resp.StatusCode() == http.StatusCreated:
				placed.Add(1)
				reference.Store(receipt.Reference)
			case failure.Code == "submission_in_flight":
				inFlight.Add(1)
			case failure.Code == "empty_cart":
				emptyCart.Add(1)
			default:
				other.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Device:           %s\n", device)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Orders Placed:    %d\n", placed.Load())
	fmt.Printf("In Flight:        %d\n", inFlight.Load())
	fmt.Printf("Empty Cart:       %d\n", emptyCart.Load())
	fmt.Printf("Other Errors:     %d\n", other.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	if ref, ok := reference.Load().(string); ok {
		fmt.Printf("Reference:        %s\n", ref)
	}
	fmt.Println("==========================================")

	if placed.Load() == 1 && other.Load() == 0 {
		fmt.Println("PASS: exactly one order placed")
	} else {
		fmt.Printf("FAIL: expected 1 order and no other errors, got %d/%d\n", placed.Load(), other.Load())
	}

	var cart handler.CartDTO
	if _, err := client.R().SetResult(&cart).Get("/cart"); err != nil {
		log.Fatalf("failed to read cart: %v", err)
	}
	if cart.Count == 0 {
		fmt.Println("PASS: cart cleared")
	} else {
		fmt.Printf("FAIL: expected empty cart, got %d items\n", cart.Count)
	}
}
