package model

import (
	"github.com/shopspring/decimal"
)

type CreateUser struct {
	Name     string                 `json:"name"`
	Balance  decimal.Decimal        `json:"balance"`
	MetaData map[string]interface{} `json:"meta_data"`
}

type CreateProduct struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	SafetyStock int64           `json:"safety_stock"`
}

type RestockProduct struct {
	Quantity int64 `json:"quantity"`
}

type AddToCart struct {
	ProductId string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}
