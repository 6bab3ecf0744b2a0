package domain

import "time"

// Product is a catalog entry (an industrial machine in the source data).
type Product struct {
	ProductID   string    `json:"id" dynamodbav:"product_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	Description *string   `json:"description" dynamodbav:"description"`
	Price       *float64  `json:"price" dynamodbav:"price"`
	PhotoURL    *string   `json:"photo_url" dynamodbav:"photo_url"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type ProductInput struct {
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	PhotoURL    *string  `json:"photo_url" validate:"omitempty,url"`
}
