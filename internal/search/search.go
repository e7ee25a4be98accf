package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/sessionauth/internal/models"
)

type userDoc struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Directory mirrors users into an Elasticsearch index. Search returns uids in relevance order.
type Directory struct {
	ES    *elasticsearch.Client
	Index string
}

func NewDirectory(es *elasticsearch.Client, index string) *Directory {
	return &Directory{ES: es, Index: index}
}

func (d *Directory) Put(ctx context.Context, u *models.User) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(userDoc{
		UID:       u.UID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}); err != nil {
		return fmt.Errorf("encode user doc: %w", err)
	}

	res, err := d.ES.Index(d.Index, &buf,
		d.ES.Index.WithContext(ctx),
		d.ES.Index.WithDocumentID(u.UID),
	)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index user", res.Status(), res.Body)
	}
	return nil
}

func (d *Directory) Remove(ctx context.Context, uid string) error {
	res, err := d.ES.Delete(d.Index, uid, d.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete user doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete user doc", res.Status(), res.Body)
	}
	return nil
}

func (d *Directory) Search(ctx context.Context, query string, from, size int) (int64, []string, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "email"},
				"fuzziness": "AUTO",
			},
		},
		"from":    from,
		"size":    size,
		"_source": []string{"uid"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := d.ES.Search(
		d.ES.Search.WithContext(ctx),
		d.ES.Search.WithIndex(d.Index),
		d.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search users", res.Status(), res.Body)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source userDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search: %w", err)
	}

	uids := make([]string, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		uids = append(uids, h.Source.UID)
	}
	return r.Hits.Total.Value, uids, nil
}

func responseError(op, status string, body io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(body, 1<<10))
	return fmt.Errorf("%s: %s: %s", op, status, b)
}
