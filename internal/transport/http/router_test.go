package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rifas-mx/rifas/internal/app"
	"github.com/rifas-mx/rifas/internal/auth"
	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/payment"
	"github.com/rifas-mx/rifas/internal/storage/memory"
)

type apiFixture struct {
	server *httptest.Server
	issuer *auth.Issuer
	clock  *clock.Manual
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inventory := app.NewInventoryService(store, clk, app.WithInventoryLogger(logger))
	raffles := app.NewRaffleService(store, inventory, clk, app.WithRaffleLogger(logger))
	sales := app.NewSaleService(store, inventory, payment.NewSimulated(), clk, app.WithSaleLogger(logger))
	draws := app.NewDrawService(store, clk, app.WithPicker(app.NewSeededPicker(1, 2)), app.WithDrawLogger(logger))

	router := NewRouter(Services{
		Raffles:  raffles,
		Tickets:  inventory,
		Draws:    draws,
		Sales:    sales,
		Reports:  app.NewReportService(store),
		Verifier: auth.NewVerifier("secret", "rifas", clk),
	}, []string{"http://localhost:5173"}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, issuer: auth.NewIssuer("secret", "rifas", clk), clock: clk}
}

func (f *apiFixture) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	tok, err := f.issuer.Issue(domain.Caller{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestAPI_RaffleLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	adminTok := f.token(t, "admin-1", domain.RoleAdmin)
	buyerTok := f.token(t, "buyer-1", domain.RoleParticipant)
	sellerTok := f.token(t, "seller-1", domain.RoleSeller)

	var created raffleResponse
	status := f.do(t, http.MethodPost, "/v1/raffles", adminTok, map[string]any{
		"name":            "Rifa del auto",
		"ticket_price":    "10.00",
		"ticket_count":    10,
		"draw_date":       f.clock.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"principal_prize": map[string]any{"name": "Auto", "value": "250000.00"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", status)
	}
	if created.Status != "draft" || len(created.Prizes) != 1 || created.TicketPrice != 1000 {
		t.Fatalf("unexpected raffle %+v", created)
	}
	base := "/v1/raffles/" + created.ID

	var errResp errorResponse
	if status := f.do(t, http.MethodPost, base+"/purchases", buyerTok, map[string]any{"ticket_ids": []string{"x"}}, &errResp); status != http.StatusConflict {
		t.Fatalf("expected 409 for draft raffle, got %d", status)
	}
	if errResp.Code != "raffle_not_active" {
		t.Fatalf("expected raffle_not_active, got %q", errResp.Code)
	}

	if status := f.do(t, http.MethodPost, base+"/activate", buyerTok, nil, &errResp); status != http.StatusForbidden {
		t.Fatalf("expected 403 for participant activate, got %d", status)
	}
	if status := f.do(t, http.MethodPost, base+"/activate", adminTok, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 on activate, got %d", status)
	}

	var tickets []ticketResponse
	if status := f.do(t, http.MethodGet, base+"/tickets?status=available", buyerTok, nil, &tickets); status != http.StatusOK {
		t.Fatalf("expected 200 listing tickets, got %d", status)
	}
	if len(tickets) != 10 {
		t.Fatalf("expected 10 tickets, got %d", len(tickets))
	}

	var sale saleResponse
	status = f.do(t, http.MethodPost, base+"/purchases", buyerTok, map[string]any{
		"ticket_ids": []string{tickets[2].ID, tickets[6].ID},
		"seller_id":  "seller-1",
	}, &sale)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on purchase, got %d", status)
	}
	if sale.TotalAmount != 2000 || len(sale.TicketNumbers) != 2 {
		t.Fatalf("unexpected sale %+v", sale)
	}

	status = f.do(t, http.MethodPost, base+"/purchases", buyerTok, map[string]any{
		"ticket_ids": []string{tickets[2].ID},
	}, &errResp)
	if status != http.StatusConflict || errResp.Code != "tickets_unavailable" {
		t.Fatalf("expected 409 tickets_unavailable, got %d %q", status, errResp.Code)
	}

	var got saleResponse
	if status := f.do(t, http.MethodGet, "/v1/sales/"+sale.ID, sellerTok, nil, &got); status != http.StatusOK {
		t.Fatalf("expected attributed seller to read sale, got %d", status)
	}
	otherTok := f.token(t, "buyer-2", domain.RoleParticipant)
	if status := f.do(t, http.MethodGet, "/v1/sales/"+sale.ID, otherTok, nil, &errResp); status != http.StatusForbidden {
		t.Fatalf("expected 403 for other buyer, got %d", status)
	}

	var summary sellerSummaryResponse
	if status := f.do(t, http.MethodGet, "/v1/sellers/me/sales", sellerTok, nil, &summary); status != http.StatusOK {
		t.Fatalf("expected 200 seller summary, got %d", status)
	}
	if summary.SalesCount != 1 || summary.TicketCount != 2 || summary.TotalAmount != 2000 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if status := f.do(t, http.MethodPost, base+"/draw", adminTok, nil, &errResp); status != http.StatusConflict || errResp.Code != "raffle_not_closed" {
		t.Fatalf("expected 409 raffle_not_closed, got %d %q", status, errResp.Code)
	}
	if status := f.do(t, http.MethodPost, base+"/close", adminTok, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 on close, got %d", status)
	}

	var winner winnerResponse
	if status := f.do(t, http.MethodPost, base+"/draw", adminTok, nil, &winner); status != http.StatusCreated {
		t.Fatalf("expected 201 on draw, got %d", status)
	}
	if winner.UserID != "buyer-1" || (winner.TicketNumber != 3 && winner.TicketNumber != 7) {
		t.Fatalf("unexpected winner %+v", winner)
	}
	if status := f.do(t, http.MethodPost, base+"/draw", adminTok, nil, &errResp); status != http.StatusConflict || errResp.Code != "already_drawn" {
		t.Fatalf("expected 409 already_drawn, got %d %q", status, errResp.Code)
	}

	var again winnerResponse
	if status := f.do(t, http.MethodGet, base+"/winner", buyerTok, nil, &again); status != http.StatusOK || again.TicketID != winner.TicketID {
		t.Fatalf("expected stored winner, got %d %+v", status, again)
	}

	var ledger []ledgerEntryResponse
	if status := f.do(t, http.MethodGet, "/v1/sales?raffle_id="+created.ID, adminTok, nil, &ledger); status != http.StatusOK {
		t.Fatalf("expected 200 ledger, got %d", status)
	}
	if len(ledger) != 1 || ledger[0].RaffleName != "Rifa del auto" {
		t.Fatalf("unexpected ledger %+v", ledger)
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	var errResp errorResponse
	if status := f.do(t, http.MethodGet, "/v1/raffles", "", nil, &errResp); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if errResp.Code != codeUnauthenticated {
		t.Fatalf("expected code %s, got %s", codeUnauthenticated, errResp.Code)
	}

	expired, err := auth.NewIssuer("secret", "rifas", clock.NewManual(f.clock.Now().Add(-2*time.Hour))).
		Issue(domain.Caller{UserID: "u", Role: domain.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if status := f.do(t, http.MethodGet, "/v1/raffles", expired, nil, &errResp); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", status)
	}

	if status := f.do(t, http.MethodGet, "/health", "", nil, nil); status != http.StatusOK {
		t.Fatalf("expected health without auth, got %d", status)
	}
	if status := f.do(t, http.MethodGet, "/nope", "", nil, &errResp); status != http.StatusNotFound || errResp.Code != codeNotFound {
		t.Fatalf("expected json 404, got %d %q", status, errResp.Code)
	}
}

func TestAPI_CreateRaffleValidation(t *testing.T) {
	f := newAPIFixture(t)
	adminTok := f.token(t, "admin-1", domain.RoleAdmin)
	future := f.clock.Now().Add(24 * time.Hour).Format(time.RFC3339)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"bad draw date", map[string]any{"name": "R", "ticket_price": "1.00", "ticket_count": 1, "draw_date": "tomorrow"}, "invalid_draw_date"},
		{"past draw date", map[string]any{"name": "R", "ticket_price": "1.00", "ticket_count": 1, "draw_date": "2020-01-01T00:00:00Z", "principal_prize": map[string]any{"name": "P"}}, "invalid_draw_date"},
		{"zero price", map[string]any{"name": "R", "ticket_price": "0", "ticket_count": 1, "draw_date": future, "principal_prize": map[string]any{"name": "P"}}, "invalid_price"},
		{"too many tickets", map[string]any{"name": "R", "ticket_price": "1.00", "ticket_count": 10001, "draw_date": future, "principal_prize": map[string]any{"name": "P"}}, "invalid_ticket_count"},
		{"unknown field", map[string]any{"name": "R", "colour": "red"}, codeInvalidRequestBody},
		{"price beyond int64", map[string]any{"name": "R", "ticket_price": "184467440737095517", "ticket_count": 1, "draw_date": future, "principal_prize": map[string]any{"name": "P"}}, codeInvalidRequestBody},
		{"sell-out total overflows", map[string]any{"name": "R", "ticket_price": "92233720368547758.07", "ticket_count": 10, "draw_date": future, "principal_prize": map[string]any{"name": "P"}}, "price_too_high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp errorResponse
			status := f.do(t, http.MethodPost, "/v1/raffles", adminTok, tt.body, &errResp)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			if errResp.Code != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, errResp.Code)
			}
		})
	}
}

func TestAPI_RejectsOversizedBody(t *testing.T) {
	f := newAPIFixture(t)
	adminTok := f.token(t, "admin-1", domain.RoleAdmin)

	var errResp errorResponse
	status := f.do(t, http.MethodPost, "/v1/raffles", adminTok, map[string]any{
		"name": strings.Repeat("a", maxBodyBytes+1),
	}, &errResp)
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", status)
	}
	if errResp.Code != codeBodyTooLarge {
		t.Fatalf("expected code %q, got %q", codeBodyTooLarge, errResp.Code)
	}
}

func TestAPI_PurchaseRecordsPaymentMethodAndValidatesSeller(t *testing.T) {
	f := newAPIFixture(t)
	adminTok := f.token(t, "admin-1", domain.RoleAdmin)
	buyerTok := f.token(t, "buyer-1", domain.RoleParticipant)

	var created raffleResponse
	status := f.do(t, http.MethodPost, "/v1/raffles", adminTok, map[string]any{
		"name":            "Rifa chica",
		"ticket_price":    "5.00",
		"ticket_count":    4,
		"draw_date":       f.clock.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"principal_prize": map[string]any{"name": "Bicicleta", "value": "3000.00"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d", status)
	}
	base := "/v1/raffles/" + created.ID
	if status := f.do(t, http.MethodPost, base+"/activate", adminTok, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 on activate, got %d", status)
	}

	var tickets []ticketResponse
	if status := f.do(t, http.MethodGet, base+"/tickets?status=available", buyerTok, nil, &tickets); status != http.StatusOK {
		t.Fatalf("expected 200 listing tickets, got %d", status)
	}

	var errResp errorResponse
	status = f.do(t, http.MethodPost, base+"/purchases", buyerTok, map[string]any{
		"ticket_ids": []string{tickets[0].ID},
		"seller_id":  "buyer-1",
	}, &errResp)
	if status != http.StatusBadRequest || errResp.Code != "invalid_seller_id" {
		t.Fatalf("expected 400 invalid_seller_id, got %d %q", status, errResp.Code)
	}

	var sale saleResponse
	status = f.do(t, http.MethodPost, base+"/purchases", buyerTok, map[string]any{
		"ticket_ids":     []string{tickets[3].ID, tickets[1].ID},
		"payment_method": "cash",
	}, &sale)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on purchase, got %d", status)
	}
	if sale.PaymentMethod != "cash" {
		t.Fatalf("expected cash, got %q", sale.PaymentMethod)
	}
	if len(sale.TicketNumbers) != 2 || sale.TicketNumbers[0] != 2 || sale.TicketNumbers[1] != 4 {
		t.Fatalf("expected tickets [2 4], got %v", sale.TicketNumbers)
	}
}
