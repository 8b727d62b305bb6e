package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/models"
	"github.com/davidps79/backend-grupo-13/internal/order"
	"github.com/davidps79/backend-grupo-13/internal/payment"
)

func TestPurchaseFlowGrantsOwnership(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "9.99", 25)
	buyer := uuid.New()
	reader := svc.lookup.addReader(buyer)

	created, err := svc.orders.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:  buyer,
		EbookID:  ebook.ID,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !created.Total.Equal(mustDecimal(t, "9.99")) {
		t.Errorf("Expected total 9.99, got %s", created.Total)
	}
	if created.Status != models.OrderStatusCreated {
		t.Errorf("Expected created order, got %s", created.Status)
	}

	var stock int
	if err := db.QueryRow(`SELECT stock FROM ebooks WHERE id = $1`, ebook.ID).Scan(&stock); err != nil {
		t.Fatalf("Read stock: %v", err)
	}
	if stock != 24 {
		t.Errorf("Expected stock 24 after purchase, got %d", stock)
	}

	link, err := svc.orders.GeneratePaymentLink(ctx, created.ID)
	if err != nil {
		t.Fatalf("GeneratePaymentLink: %v", err)
	}
	if link.Link == "" {
		t.Fatal("Expected a payment link")
	}

	txn, err := svc.orders.GetTransaction(ctx, link.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if txn.Status != models.TxStatusLinkIssued {
		t.Errorf("Expected link_issued, got %s", txn.Status)
	}

	err = svc.orders.HandleCallback(ctx, payment.Callback{
		TransactionID: link.TransactionID,
		Status:        payment.CallbackApproved,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	txn, err = svc.orders.GetTransaction(ctx, link.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if txn.Status != models.TxStatusPaid {
		t.Errorf("Expected paid, got %s", txn.Status)
	}

	settled, err := svc.orders.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if settled.Status != models.OrderStatusCompleted {
		t.Errorf("Expected completed order, got %s", settled.Status)
	}

	owned, err := svc.ownership.FindAllEbooksByReader(ctx, reader.ID, 1, 12)
	if err != nil {
		t.Fatalf("FindAllEbooksByReader: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != ebook.ID {
		t.Errorf("Expected the purchased ebook on the shelf, got %d ebooks", len(owned))
	}
}

func TestGeneratePaymentLinkIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "7.49", 40)
	buyer := uuid.New()
	svc.lookup.addReader(buyer)

	created, err := svc.orders.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:  buyer,
		EbookID:  ebook.ID,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	first, err := svc.orders.GeneratePaymentLink(ctx, created.ID)
	if err != nil {
		t.Fatalf("First GeneratePaymentLink: %v", err)
	}
	second, err := svc.orders.GeneratePaymentLink(ctx, created.ID)
	if err != nil {
		t.Fatalf("Second GeneratePaymentLink: %v", err)
	}

	if first.TransactionID != second.TransactionID {
		t.Errorf("Expected the same transaction, got %s and %s", first.TransactionID, second.TransactionID)
	}
	if first.Link != second.Link {
		t.Errorf("Expected the same link, got %q and %q", first.Link, second.Link)
	}
	if svc.gateway.calls != 1 {
		t.Errorf("Gateway must be called once, got %d", svc.gateway.calls)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE order_id = $1`, created.ID).Scan(&count); err != nil {
		t.Fatalf("Count transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one transaction, got %d", count)
	}
}

func TestRepeatedSuccessCallbackGrantsOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "8.99", 28)
	buyer := uuid.New()
	reader := svc.lookup.addReader(buyer)

	link, err := svc.orders.Buy(ctx, order.CreateOrderRequest{BuyerID: buyer, EbookID: ebook.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := svc.orders.HandleCallback(ctx, payment.Callback{
			TransactionID: link.TransactionID,
			Status:        payment.CallbackApproved,
		})
		if err != nil {
			t.Fatalf("Callback %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ebooks_readers WHERE reader_id = $1 AND ebook_id = $2`,
		reader.ID, ebook.ID).Scan(&count); err != nil {
		t.Fatalf("Count entitlements: %v", err)
	}
	if count != 1 {
		t.Errorf("Repeated callbacks must grant exactly one entitlement, got %d", count)
	}
}

func TestFailureCallbackGrantsNothing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "5.99", 15)
	buyer := uuid.New()
	reader := svc.lookup.addReader(buyer)

	link, err := svc.orders.Buy(ctx, order.CreateOrderRequest{BuyerID: buyer, EbookID: ebook.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	err = svc.orders.HandleCallback(ctx, payment.Callback{
		TransactionID: link.TransactionID,
		Status:        payment.CallbackRejected,
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	txn, err := svc.orders.GetTransaction(ctx, link.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if txn.Status != models.TxStatusFailed {
		t.Errorf("Expected failed transaction, got %s", txn.Status)
	}

	// A late success for the already-failed transaction is absorbed.
	err = svc.orders.HandleCallback(ctx, payment.Callback{
		TransactionID: link.TransactionID,
		Status:        payment.CallbackApproved,
	})
	if err != nil {
		t.Fatalf("Late callback must be a no-op: %v", err)
	}

	owned, err := svc.ownership.FindAllEbooksByReader(ctx, reader.ID, 1, 12)
	if err != nil {
		t.Fatalf("FindAllEbooksByReader: %v", err)
	}
	if len(owned) != 0 {
		t.Errorf("Failed payment must grant nothing, got %d ebooks", len(owned))
	}
}

func TestCallbackUnknownTransaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)

	err := svc.orders.HandleCallback(context.Background(), payment.Callback{
		TransactionID: uuid.New(),
		Status:        payment.CallbackApproved,
	})
	if !errors.Is(err, database.ErrTransactionNotFound) {
		t.Fatalf("Expected transaction not found, got: %v", err)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "9.99", 2)
	buyer := uuid.New()
	svc.lookup.addReader(buyer)

	_, err := svc.orders.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:  buyer,
		EbookID:  ebook.ID,
		Quantity: 3,
	})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got: %v", err)
	}

	var stock int
	if err := db.QueryRow(`SELECT stock FROM ebooks WHERE id = $1`, ebook.ID).Scan(&stock); err != nil {
		t.Fatalf("Read stock: %v", err)
	}
	if stock != 2 {
		t.Errorf("Stock must be unchanged at 2, got %d", stock)
	}
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "9.99", 10)
	buyer := uuid.New()
	svc.lookup.addReader(buyer)

	concurrency := 8
	var wg sync.WaitGroup
	failures := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.orders.CreateOrder(ctx, order.CreateOrderRequest{
				BuyerID:  buyer,
				EbookID:  ebook.ID,
				Quantity: 2,
			})
			if err != nil {
				failures <- err
			}
		}()
	}

	wg.Wait()
	close(failures)

	succeeded := concurrency
	for err := range failures {
		if !errors.Is(err, database.ErrInsufficientStock) && err != nil {
			t.Logf("Order failed with: %v", err)
		}
		succeeded--
	}

	var stock int
	if err := db.QueryRow(`SELECT stock FROM ebooks WHERE id = $1`, ebook.ID).Scan(&stock); err != nil {
		t.Fatalf("Read stock: %v", err)
	}
	if stock != 10-succeeded*2 {
		t.Errorf("Stock %d does not match %d successful orders of 2", stock, succeeded)
	}
	if stock < 0 {
		t.Error("Stock went negative: oversold")
	}
}

func TestGatewayFailureMarksTransactionFailed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebook := mustCreateEbook(t, svc, "9.99", 5)
	buyer := uuid.New()
	svc.lookup.addReader(buyer)

	created, err := svc.orders.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:  buyer,
		EbookID:  ebook.ID,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	svc.gateway.fail = true
	_, err = svc.orders.GeneratePaymentLink(ctx, created.ID)
	if !errors.Is(err, database.ErrGateway) {
		t.Fatalf("Expected gateway error, got: %v", err)
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM transactions WHERE order_id = $1`, created.ID).Scan(&status); err != nil {
		t.Fatalf("Read transaction: %v", err)
	}
	if status != models.TxStatusFailed {
		t.Errorf("Expected failed transaction after gateway error, got %s", status)
	}

	// The retry starts over with a fresh transaction.
	svc.gateway.fail = false
	link, err := svc.orders.GeneratePaymentLink(ctx, created.ID)
	if err != nil {
		t.Fatalf("Retry after gateway failure: %v", err)
	}
	if link.Link == "" {
		t.Error("Expected a link on retry")
	}
}

func TestCartCheckout(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := newServices(db)
	ctx := context.Background()

	ebookA := mustCreateEbook(t, svc, "9.99", 25)
	ebookB := mustCreateEbook(t, svc, "7.49", 40)
	buyer := uuid.New()
	svc.lookup.addReader(buyer)

	if _, err := svc.cart.AddItem(ctx, buyer, ebookA.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.cart.AddItem(ctx, buyer, ebookB.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	links, err := svc.orders.CheckoutCart(ctx, buyer)
	if err != nil {
		t.Fatalf("CheckoutCart: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("Expected 2 payment links, got %d", len(links))
	}

	items, err := svc.cart.Items(ctx, buyer)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Cart must be empty after checkout, got %d items", len(items))
	}
}
