package wfm

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"wfm-pricer/internal/model"
)

// ErrOrderLimitReached is returned by CreateOrder when the marketplace
// rejects the request because the operator already has the maximum number
// of open orders. It is a soft, expected outcome (the pricing loop logs and
// moves on), not a transport or decode failure.
var ErrOrderLimitReached = errors.New("wfm: order limit reached")

// wireOrder is the on-wire shape of one order as returned by the
// marketplace API, translated to/from model.Order at the package
// boundary so no other package needs to know the wire format.
type wireOrder struct {
	ID         string `json:"id"`
	Platinum   int    `json:"platinum"`
	Quantity   int    `json:"quantity"`
	Visible    bool   `json:"visible"`
	OrderType  string `json:"order_type"`
	ModRank    *int   `json:"mod_rank,omitempty"`
	Subtype    *int   `json:"subtype,omitempty"`
	CyanStars  *int   `json:"cyan_stars,omitempty"`
	AmberStars *int   `json:"amber_stars,omitempty"`
	Item       struct {
		URLName string `json:"url_name"`
	} `json:"item"`
	User struct {
		IngameName string `json:"ingame_name"`
		ID         string `json:"id"`
	} `json:"user"`
}

func (w wireOrder) toModel() model.Order {
	side := model.SideBuy
	if w.OrderType == "sell" {
		side = model.SideSell
	}
	return model.Order{
		ID:      w.ID,
		ItemURL: w.Item.URLName,
		SubType: model.SubType{
			Rank:       w.ModRank,
			Variant:    w.Subtype,
			CyanStars:  w.CyanStars,
			AmberStars: w.AmberStars,
		},
		Side:     side,
		Platinum: w.Platinum,
		Quantity: w.Quantity,
		Visible:  w.Visible,
		Username: w.User.IngameName,
		SellerID: w.User.ID,
	}
}

type createOrderRequest struct {
	ItemURL    string `json:"item_url"`
	OrderType  string `json:"order_type"`
	Platinum   int    `json:"platinum"`
	Quantity   int    `json:"quantity"`
	Visible    bool   `json:"visible"`
	ModRank    *int   `json:"mod_rank,omitempty"`
	Subtype    *int   `json:"subtype,omitempty"`
	CyanStars  *int   `json:"cyan_stars,omitempty"`
	AmberStars *int   `json:"amber_stars,omitempty"`
}

type orderEnvelope struct {
	Payload struct {
		Order wireOrder `json:"order"`
	} `json:"payload"`
}

// GetMyOrders fetches the operator's own buy and sell orders.
func (c *Client) GetMyOrders(ctx context.Context) (model.Orders, error) {
	var resp struct {
		Payload struct {
			BuyOrders  []wireOrder `json:"buy_orders"`
			SellOrders []wireOrder `json:"sell_orders"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, "/profile/orders", &resp); err != nil {
		return model.Orders{}, fmt.Errorf("get my orders: %w", err)
	}

	out := model.Orders{}
	for _, w := range resp.Payload.BuyOrders {
		out.BuyOrders = append(out.BuyOrders, w.toModel())
	}
	for _, w := range resp.Payload.SellOrders {
		out.SellOrders = append(out.SellOrders, w.toModel())
	}
	return out, nil
}

// GetOrdersByItem fetches every live order (any seller) for one item.
func (c *Client) GetOrdersByItem(ctx context.Context, urlName string) ([]model.Order, error) {
	var resp struct {
		Payload struct {
			Orders []wireOrder `json:"orders"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, "/items/"+urlName+"/orders", &resp); err != nil {
		return nil, fmt.Errorf("get orders for %s: %w", urlName, err)
	}

	out := make([]model.Order, 0, len(resp.Payload.Orders))
	for _, w := range resp.Payload.Orders {
		out = append(out, w.toModel())
	}
	return out, nil
}

// CreateOrder places a new buy or sell order.
func (c *Client) CreateOrder(ctx context.Context, urlName string, side model.OrderSide, platinum, quantity int, sub model.SubType) (model.Order, error) {
	req := createOrderRequest{
		ItemURL:    urlName,
		OrderType:  string(side),
		Platinum:   platinum,
		Quantity:   quantity,
		Visible:    true,
		ModRank:    sub.Rank,
		Subtype:    sub.Variant,
		CyanStars:  sub.CyanStars,
		AmberStars: sub.AmberStars,
	}
	var resp orderEnvelope
	if err := c.postJSON(ctx, "/profile/orders", req, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && bytes.Contains(apiErr.Body, []byte("order_limit_reached")) {
			return model.Order{}, ErrOrderLimitReached
		}
		return model.Order{}, fmt.Errorf("create order for %s: %w", urlName, err)
	}
	return resp.Payload.Order.toModel(), nil
}

// UpdateOrder changes the platinum price and/or quantity of an existing order.
func (c *Client) UpdateOrder(ctx context.Context, id string, platinum, quantity int) (model.Order, error) {
	req := struct {
		Platinum int `json:"platinum"`
		Quantity int `json:"quantity"`
	}{platinum, quantity}

	var resp orderEnvelope
	if err := c.putJSON(ctx, "/profile/orders/"+id, req, &resp); err != nil {
		return model.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	return resp.Payload.Order.toModel(), nil
}

// DeleteOrder removes an order by id.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	if err := c.deleteJSON(ctx, "/profile/orders/"+id, nil); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}
