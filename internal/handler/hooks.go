package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"plausible-bridge/internal/events"
	"plausible-bridge/internal/hostinfo"
	"plausible-bridge/internal/model"
	"plausible-bridge/internal/script"
)

// htmlResponse carries markup the host prints into the page. Empty HTML
// means there is nothing to print.
type htmlResponse struct {
	HTML string `json:"html"`
}

// ScriptTagRequest is the body of POST /hooks/script-tag.
type ScriptTagRequest struct {
	Tag     string                `json:"tag"`
	Context script.RequestContext `json:"context"`
}

// CartAddedRequest is the body of POST /hooks/cart/added. Visitor describes
// the browser request that triggered the hook on the host.
type CartAddedRequest struct {
	ProductID   int64        `json:"product_id"`
	VariationID int64        `json:"variation_id,omitempty"`
	Quantity    int          `json:"quantity"`
	CartToken   string       `json:"cart_token"`
	Visitor     model.Origin `json:"visitor"`
}

// CartRemovedRequest is the body of POST /hooks/cart/removed.
type CartRemovedRequest struct {
	CartItemKey string       `json:"cart_item_key"`
	CartToken   string       `json:"cart_token"`
	Visitor     model.Origin `json:"visitor"`
}

// CheckoutRequest is the body of POST /hooks/checkout.
type CheckoutRequest struct {
	CartToken string `json:"cart_token"`
}

// handleScriptTag rewrites the tracker script tag for the page being rendered.
// POST /hooks/script-tag
func (h *Handler) handleScriptTag(w http.ResponseWriter, r *http.Request) {
	var req ScriptTagRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Tag == "" {
		h.writeError(w, model.NewValidationError("tag", "required"))
		return
	}

	h.dispatchHTML(w, r, events.ScriptTagRendering{Tag: req.Tag, Context: req.Context})
}

// handleCartAdded sends the add-to-cart event for the visitor.
// POST /hooks/cart/added
func (h *Handler) handleCartAdded(w http.ResponseWriter, r *http.Request) {
	var req CartAddedRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.dispatchEvent(w, r, events.CartItemAdded{
		ProductID:   req.ProductID,
		VariationID: req.VariationID,
		Quantity:    req.Quantity,
		CartToken:   req.CartToken,
		Origin:      req.Visitor,
	})
}

// handleCartRemoved sends the remove-from-cart event for the visitor.
// POST /hooks/cart/removed
func (h *Handler) handleCartRemoved(w http.ResponseWriter, r *http.Request) {
	var req CartRemovedRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.dispatchEvent(w, r, events.CartItemRemoved{
		CartItemKey: req.CartItemKey,
		CartToken:   req.CartToken,
		Origin:      req.Visitor,
	})
}

// handleCheckout returns the checkout tracking script.
// POST /hooks/checkout
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.dispatchHTML(w, r, events.CheckoutRendered{CartToken: req.CartToken})
}

// handleThankYou returns the purchase tracking script, once per order.
// POST /hooks/thankyou/{order_id}
func (h *Handler) handleThankYou(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var locale string
	if host, ok := hostinfo.FromContext(r.Context()); ok {
		locale = host.Locale
	}

	h.dispatchHTML(w, r, events.OrderCompleted{OrderID: orderID, Locale: locale})
}

// handleProductForm returns the add-to-cart form tagging script.
// GET /hooks/product-form/{product_id}
func (h *Handler) handleProductForm(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.dispatchHTML(w, r, events.ProductPageRendered{ProductID: productID})
}

func (h *Handler) dispatchHTML(w http.ResponseWriter, r *http.Request, msg events.Message) {
	res, err := h.dispatcher.Dispatch(r.Context(), msg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, htmlResponse{HTML: res.HTML})
}

// dispatchEvent runs a server side event hook. The host does not wait on
// the outcome, so success is 202 and delivery failures are 502.
func (h *Handler) dispatchEvent(w http.ResponseWriter, r *http.Request, msg events.Message) {
	if _, err := h.dispatcher.Dispatch(r.Context(), msg); err != nil {
		h.logger.WarnContext(r.Context(), "event hook failed",
			slog.String("event", msg.Kind()),
			slog.String("error", err.Error()),
		)
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func validationError(field string, err error) error {
	return model.NewValidationError(field, err.Error())
}
