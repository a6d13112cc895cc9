package prestashop

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/arcasync/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PrestaShopConfig{URL: srv.URL + "/api/", APIKey: "KEY", Timeout: 5})
}

func TestList_SendsAuthAndJSONFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "KEY", user)
		assert.Equal(t, "", pass)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "JSON", r.URL.Query().Get("output_format"))
		assert.Equal(t, "[id,reference]", r.URL.Query().Get("display"))
		assert.Equal(t, "[8]", r.URL.Query().Get("filter[id_category_default]"))
		io.WriteString(w, `{"products":[{"id":1,"reference":"AB1"},{"id":"2","reference":"AB2"}]}`)
	})

	var out struct {
		Products []ProductRecord `json:"products"`
	}
	q := NewQuery().Display("id", "reference").Filter("id_category_default", "8")
	require.NoError(t, client.List(context.Background(), "products", q, &out))
	require.Len(t, out.Products, 2)
	assert.Equal(t, FlexString("1"), out.Products[0].ID)
	assert.Equal(t, "AB2", out.Products[1].Reference)
}

func TestList_EmptyCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	var out struct {
		Manufacturers []ManufacturerRecord `json:"manufacturers"`
	}
	require.NoError(t, client.List(context.Background(), "manufacturers", nil, &out))
	assert.Empty(t, out.Manufacturers)
}

func TestGet_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"errors":[{"code":87,"message":"no product"}]}`)
	})

	var out struct{ Product ProductRecord }
	err := client.Get(context.Background(), "products", "99", nil, &out)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, ResponseBody(err), "no product")
}

func TestCreate_ReturnsAssignedID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/xml", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<manufacturer><active>1</active><name>ACME</name></manufacturer>")
		io.WriteString(w, `<?xml version="1.0"?><prestashop><manufacturer><id><![CDATA[17]]></id><name>ACME</name></manufacturer></prestashop>`)
	})

	doc := &Document{Manufacturer: &Manufacturer{Active: "1", Name: "ACME"}}
	body, err := doc.Marshal()
	require.NoError(t, err)

	id, err := client.Create(context.Background(), "manufacturers", body)
	require.NoError(t, err)
	assert.Equal(t, "17", id)
}

func TestUpdate_ServerErrorCarriesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/categories/12", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<prestashop><errors><error>boom</error></errors></prestashop>")
	})

	_, err := client.Update(context.Background(), "categories", "12", []byte("<prestashop/>"))
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, ResponseBody(err), "boom")
}

func TestImages(t *testing.T) {
	var deleted []string
	var uploaded string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/images/products/5":
			io.WriteString(w, `<prestashop><image id="5"><declination id="30"/><declination id="31"/></image></prestashop>`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/images/products/6":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
		case r.Method == http.MethodPost:
			assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			file, header, err := r.FormFile("image")
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(file)
			uploaded = header.Filename + ":" + string(data)
			io.WriteString(w, `<prestashop><image><id>40</id></image></prestashop>`)
		}
	})
	ctx := context.Background()

	ids, err := client.ListImages(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "31"}, ids)

	ids, err = client.ListImages(ctx, "6")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, client.DeleteImage(ctx, "5", "30"))
	assert.Equal(t, []string{"/api/images/products/5/30"}, deleted)

	require.NoError(t, client.UploadImage(ctx, "5", "AB11.jpg", []byte("raw")))
	assert.Equal(t, "AB11.jpg:raw", uploaded)
}

func TestLangString(t *testing.T) {
	var out struct {
		A LangString `json:"a"`
		B LangString `json:"b"`
		C LangString `json:"c"`
	}
	body := `{"a":"plain","b":[{"id":"2","value":"en"},{"id":"1","value":"it"}],"c":[]}`
	require.NoError(t, decodeJSON([]byte(body), &out))
	assert.Equal(t, LangString("plain"), out.A)
	assert.Equal(t, LangString("it"), out.B)
	assert.Equal(t, LangString(""), out.C)
}

func TestPayloadMarshal(t *testing.T) {
	p := &Product{Reference: "AB1", Name: Lang("Widget"), Price: "10.000"}
	p.SetCategories([]string{"2", "14"})
	body, err := (&Document{Product: p}).Marshal()
	require.NoError(t, err)

	s := string(body)
	assert.True(t, strings.HasPrefix(s, "<?xml"))
	assert.Contains(t, s, `<name><language id="1">Widget</language></name>`)
	assert.Contains(t, s, `<categories nodeType="category" api="categories"><category><id>2</id></category><category><id>14</id></category></categories>`)
	assert.NotContains(t, s, "<id_manufacturer>")
}
