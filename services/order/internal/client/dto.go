package client

import "github.com/sakashimaa/order-orchestrator/services/order/internal/domain"

// Wire formats of the identity and catalog services. They are kept apart
// from the domain types so either side can change independently.

type userDTO struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (u userDTO) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

type productDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Price         int64  `json:"price"`
	StockQuantity int64  `json:"stockQuantity"`
	ImagePath     string `json:"imagePath"`
}

func (p productDTO) toDomain() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImagePath:     p.ImagePath,
	}
}

type updateQuantityDTO struct {
	ID            int64 `json:"id"`
	StockQuantity int64 `json:"stockQuantity"`
}

type emptyResult struct{}
