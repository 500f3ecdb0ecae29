// Package handler は管理APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runherald/internal/model"
	"github.com/hitoshi/runherald/internal/subscription"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// List は全購読を返す。
	List(ctx context.Context) ([]*model.Subscription, error)
	// Get は指定IDの購読を返す。
	Get(ctx context.Context, id string) (*model.Subscription, error)
	// Create は新しい購読を作成する。
	Create(ctx context.Context, gameID, locale string, active bool) (*model.Subscription, error)
	// Update は購読を部分更新する。
	Update(ctx context.Context, id string, patch subscription.UpdatePatch) (*model.Subscription, error)
	// Delete は購読を削除する。
	Delete(ctx context.Context, id string) error
	// ListMessages は購読の配信台帳を返す。
	ListMessages(ctx context.Context, id string) ([]*model.Message, error)
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// createSubscriptionRequest は購読作成リクエストのボディ。
type createSubscriptionRequest struct {
	GameID string `json:"game_id"`
	Locale string `json:"locale"`
	Active *bool  `json:"active"`
}

// updateSubscriptionRequest は購読更新リクエストのボディ。nilフィールドは変更しない。
type updateSubscriptionRequest struct {
	GameID *string `json:"game_id"`
	Locale *string `json:"locale"`
	Active *bool   `json:"active"`
}

// subscriptionResponse は購読情報のAPIレスポンス。
type subscriptionResponse struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Locale    string    `json:"locale"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// messageResponse は配信台帳エントリのAPIレスポンス。
type messageResponse struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	SubscriptionID string    `json:"subscription_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListSubscriptions は購読一覧を返す。
// GET /api/subscriptions
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, toSubscriptionResponse(sub))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetSubscription は購読詳細を返す。
// GET /api/subscriptions/:id
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// CreateSubscription は購読を作成する。
// POST /api/subscriptions
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	// activeの既定値はtrue
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sub, err := h.service.Create(r.Context(), req.GameID, req.Locale, active)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// UpdateSubscription は購読を部分更新する。
// PATCH /api/subscriptions/:id
func (h *SubscriptionHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sub, err := h.service.Update(r.Context(), id, subscription.UpdatePatch{
		GameID: req.GameID,
		Locale: req.Locale,
		Active: req.Active,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubscriptionResponse(sub))
}

// DeleteSubscription は購読を削除する。
// DELETE /api/subscriptions/:id
func (h *SubscriptionHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMessages は購読の配信台帳を返す。
// GET /api/subscriptions/:id/messages
func (h *SubscriptionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msgs, err := h.service.ListMessages(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, messageResponse{
			ID:             msg.ID,
			RunID:          msg.RunID,
			SubscriptionID: msg.SubscriptionID,
			CreatedAt:      msg.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

// toSubscriptionResponse はmodel.SubscriptionからAPIレスポンスに変換する。
func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		GameID:    sub.GameID,
		Locale:    sub.Locale,
		Active:    sub.Active,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSubscriptionNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidLocale, model.ErrCodeInvalidGameID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
