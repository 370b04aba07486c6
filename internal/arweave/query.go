package arweave

import (
	"context"
	"fmt"

	"github.com/yangwenmai/savanna/internal/model"
)

const transactionQuery = `
query GetTransaction($id: ID!) {
  transaction(id: $id) {
    id
    tags { name value }
    block { timestamp }
  }
}`

const transactionsQuery = `
query Transactions($tags: [TagFilter!], $first: Int) {
  transactions(tags: $tags, first: $first, sort: HEIGHT_DESC) {
    edges {
      node {
        id
        tags { name value }
        block { timestamp }
      }
    }
  }
}`

// Transaction is a gateway transaction header.
type Transaction struct {
	ID    string      `json:"id"`
	Tags  []model.Tag `json:"tags"`
	Block *struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"block"`
}

// TagMap indexes the tags by name; the first occurrence wins.
func (t Transaction) TagMap() map[string]string {
	m := make(map[string]string, len(t.Tags))
	for _, tag := range t.Tags {
		if _, ok := m[tag.Name]; !ok {
			m[tag.Name] = tag.Value
		}
	}
	return m
}

// BlockTimestamp returns the unix time of the including block, or 0 when pending.
func (t Transaction) BlockTimestamp() int64 {
	if t.Block == nil {
		return 0
	}
	return t.Block.Timestamp
}

// Transaction looks up a single transaction by ID.
func (c *Client) Transaction(ctx context.Context, id string) (*Transaction, error) {
	var out struct {
		Transaction *Transaction `json:"transaction"`
	}
	if err := c.GraphQL(ctx, transactionQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, fmt.Errorf("%s: %w", id, model.ErrTransactionNotFound)
	}
	return out.Transaction, nil
}

type tagFilter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Transactions lists the most recent transactions carrying all of the given tags.
func (c *Client) Transactions(ctx context.Context, tags []model.Tag, first int) ([]Transaction, error) {
	filters := make([]tagFilter, 0, len(tags))
	for _, t := range tags {
		filters = append(filters, tagFilter{Name: t.Name, Values: []string{t.Value}})
	}

	var out struct {
		Transactions struct {
			Edges []struct {
				Node Transaction `json:"node"`
			} `json:"edges"`
		} `json:"transactions"`
	}
	if err := c.GraphQL(ctx, transactionsQuery, map[string]any{"tags": filters, "first": first}, &out); err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(out.Transactions.Edges))
	for _, e := range out.Transactions.Edges {
		txs = append(txs, e.Node)
	}
	return txs, nil
}
