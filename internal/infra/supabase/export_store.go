package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

// FetchUserRows returns every row of table scoped to userID, decoded as
// generic JSON objects.
func (c *Client) FetchUserRows(ctx context.Context, table domain.ExportTable, userID string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchUserRows")
	defer span.End()

	rows := []map[string]any{}
	err := c.execute(ctx, "supabase-export", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s?select=*&%s", table.Name, eq(table.UserColumn, userID)))
		if err != nil || body == nil {
			return err
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		return dec.Decode(&rows)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
