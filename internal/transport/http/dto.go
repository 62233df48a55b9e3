package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rifas-mx/rifas/internal/app"
	"github.com/rifas-mx/rifas/internal/domain"
)

type prizeRequest struct {
	Name  string       `json:"name"`
	Value domain.Money `json:"value"`
}

type createRaffleRequest struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	TicketPrice    domain.Money `json:"ticket_price"`
	TicketCount    int          `json:"ticket_count"`
	DrawDate       string       `json:"draw_date"`
	PrincipalPrize prizeRequest `json:"principal_prize"`
}

type purchaseRequest struct {
	TicketIDs     []string `json:"ticket_ids"`
	SellerID      string   `json:"seller_id"`
	PaymentMethod string   `json:"payment_method"`
}

type raffleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	TicketPrice domain.Money    `json:"ticket_price"`
	TicketCount int             `json:"ticket_count"`
	DrawDate    time.Time       `json:"draw_date"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Prizes      []prizeResponse `json:"prizes,omitempty"`
}

type prizeResponse struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Value domain.Money `json:"value"`
	Kind  string       `json:"kind"`
	Place int          `json:"place"`
}

type ticketResponse struct {
	ID      string     `json:"id"`
	Number  int        `json:"number"`
	Status  string     `json:"status"`
	OwnerID string     `json:"owner_id,omitempty"`
	SoldAt  *time.Time `json:"sold_at,omitempty"`
}

type saleResponse struct {
	ID            string       `json:"id"`
	RaffleID      string       `json:"raffle_id"`
	BuyerID       string       `json:"buyer_id"`
	SellerID      string       `json:"seller_id,omitempty"`
	PaymentMethod string       `json:"payment_method"`
	PaymentRef    string       `json:"payment_ref"`
	TotalAmount   domain.Money `json:"total_amount"`
	TicketIDs     []string     `json:"ticket_ids"`
	TicketNumbers []int        `json:"ticket_numbers"`
	CreatedAt     time.Time    `json:"created_at"`
}

type winnerResponse struct {
	RaffleID     string    `json:"raffle_id"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber int       `json:"ticket_number"`
	PrizeID      string    `json:"prize_id"`
	UserID       string    `json:"user_id"`
	DrawnAt      time.Time `json:"drawn_at"`
}

type ledgerEntryResponse struct {
	SaleID        string       `json:"sale_id"`
	RaffleID      string       `json:"raffle_id"`
	RaffleName    string       `json:"raffle_name"`
	BuyerID       string       `json:"buyer_id"`
	SellerID      string       `json:"seller_id,omitempty"`
	PaymentMethod string       `json:"payment_method"`
	PaymentRef    string       `json:"payment_ref"`
	TotalAmount   domain.Money `json:"total_amount"`
	TicketNumbers []int        `json:"ticket_numbers"`
	CreatedAt     time.Time    `json:"created_at"`
}

type sellerSummaryResponse struct {
	SellerID    string                `json:"seller_id"`
	SalesCount  int                   `json:"sales_count"`
	TicketCount int                   `json:"ticket_count"`
	TotalAmount domain.Money          `json:"total_amount"`
	Sales       []ledgerEntryResponse `json:"sales"`
}

func toRaffleResponse(r domain.Raffle) raffleResponse {
	return raffleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		TicketPrice: r.TicketPrice,
		TicketCount: r.TicketCount,
		DrawDate:    r.DrawDate,
		Status:      string(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toRaffleDetailsResponse(d app.RaffleDetails) raffleResponse {
	resp := toRaffleResponse(d.Raffle)
	resp.Prizes = make([]prizeResponse, 0, len(d.Prizes))
	for _, p := range d.Prizes {
		resp.Prizes = append(resp.Prizes, toPrizeResponse(p))
	}
	return resp
}

func toPrizeResponse(p domain.Prize) prizeResponse {
	return prizeResponse{ID: p.ID, Name: p.Name, Value: p.Value, Kind: string(p.Kind), Place: p.Place}
}

func toSaleResponse(s domain.Sale) saleResponse {
	return saleResponse{
		ID:            s.ID,
		RaffleID:      s.RaffleID,
		BuyerID:       s.BuyerID,
		SellerID:      s.SellerID,
		PaymentMethod: string(s.PaymentMethod),
		PaymentRef:    s.PaymentRef,
		TotalAmount:   s.TotalAmount,
		TicketIDs:     nonNil(s.TicketIDs),
		TicketNumbers: nonNil(s.TicketNumbers),
		CreatedAt:     s.CreatedAt,
	}
}

func toLedgerResponse(entries []domain.LedgerEntry) []ledgerEntryResponse {
	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerEntryResponse{
			SaleID:        e.SaleID,
			RaffleID:      e.RaffleID,
			RaffleName:    e.RaffleName,
			BuyerID:       e.BuyerID,
			SellerID:      e.SellerID,
			PaymentMethod: string(e.PaymentMethod),
			PaymentRef:    e.PaymentRef,
			TotalAmount:   e.TotalAmount,
			TicketNumbers: nonNil(e.TicketNumbers),
			CreatedAt:     e.CreatedAt,
		})
	}
	return resp
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// maxBodyBytes fits a purchase of a full 10,000-ticket raffle with room to spare.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
