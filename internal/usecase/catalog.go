package usecase

import (
	"context"
	"fmt"

	"StockSim/internal/domain/models"
	drepo "StockSim/internal/domain/repository"
)

// CatalogUsecase browses the warehouse one level at a time.
type CatalogUsecase struct {
	catalog drepo.Catalog
}

func NewCatalogUsecase(catalog drepo.Catalog) *CatalogUsecase {
	return &CatalogUsecase{catalog: catalog}
}

// List returns databases when no database is given, the tables of the
// database when no table is given, and the table's columns otherwise.
func (uc *CatalogUsecase) List(ctx context.Context, req models.CatalogRequest) (*models.CatalogResponse, error) {
	resp := &models.CatalogResponse{Database: req.Database, Table: req.Table}
	var err error
	switch {
	case req.Database == "" && req.Table != "":
		return nil, fmt.Errorf("%w: table requires database", ErrInvalidRequest)
	case req.Database == "":
		resp.Databases, err = uc.catalog.Databases(ctx)
	case req.Table == "":
		resp.Tables, err = uc.catalog.Tables(ctx, req.Database)
	default:
		resp.Columns, err = uc.catalog.Columns(ctx, req.Database, req.Table)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return resp, nil
}
