package sync

import (
	"context"

	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/prestashop"
)

// Remote is the store webservice as used by the reconciliation passes.
// *prestashop.Client satisfies it.
type Remote interface {
	Lister
	Get(ctx context.Context, resource, id string, q *prestashop.Query, out interface{}) error
	Create(ctx context.Context, resource string, body []byte) (string, error)
	Update(ctx context.Context, resource, id string, body []byte) (string, error)
	Delete(ctx context.Context, resource, id string) error
	ListImages(ctx context.Context, productID string) ([]string, error)
	DeleteImage(ctx context.Context, productID, imageID string) error
	UploadImage(ctx context.Context, productID, filename string, data []byte) error
}

// ImageSource provides the ERP pictures of an item. *arca.Store satisfies it.
type ImageSource interface {
	ProductImages(ctx context.Context, code string) ([]arca.Image, error)
}
