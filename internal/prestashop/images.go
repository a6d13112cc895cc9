package prestashop

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// ListImages returns the image ids of a product. A product without images
// answers 404, which is reported as an empty list.
func (c *Client) ListImages(ctx context.Context, productID string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "images/products/"+productID, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc struct {
		Image struct {
			Declinations []struct {
				ID string `xml:"id,attr"`
			} `xml:"declination"`
		} `xml:"image"`
	}
	if len(bytes.TrimSpace(resp.Body())) == 0 {
		return nil, nil
	}
	if err := xml.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse image list: %w", err)
	}

	ids := make([]string, 0, len(doc.Image.Declinations))
	for _, d := range doc.Image.Declinations {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// DeleteImage removes one image of a product
func (c *Client) DeleteImage(ctx context.Context, productID, imageID string) error {
	_, err := c.do(ctx, http.MethodDelete, "images/products/"+productID+"/"+imageID, nil)
	return err
}

// UploadImage adds an image to a product as multipart field "image"
func (c *Client) UploadImage(ctx context.Context, productID, filename string, data []byte) error {
	_, err := c.do(ctx, http.MethodPost, "images/products/"+productID+"/", func(r *resty.Request) {
		r.SetFileReader("image", filename, bytes.NewReader(data))
	})
	return err
}
