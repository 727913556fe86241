package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// httpShardClient reaches one node process over its REST adapter. It
// implements coordinator.ShardClient entirely against the public surface
// internal/restapi already exposes — the coordinator is just another
// caller of that API, the same as any other REST client would be.
type httpShardClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPShardClient(baseURL string) *httpShardClient {
	return &httpShardClient{baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Second}}
}

func (c *httpShardClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("shard request %s failed with status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *httpShardClient) Users(ctx context.Context) ([]string, error) {
	var out []string
	err := c.get(ctx, "/api/v1/users", &out)
	return out, err
}

func (c *httpShardClient) Groups(ctx context.Context) ([]string, error) {
	var out []string
	err := c.get(ctx, "/api/v1/groups", &out)
	return out, err
}

func (c *httpShardClient) ContainsUser(ctx context.Context, user string) (bool, error) {
	var out bool
	err := c.get(ctx, "/api/v1/users/"+url.PathEscape(user), &out)
	return out, err
}

func (c *httpShardClient) ContainsGroup(ctx context.Context, group string) (bool, error) {
	var out bool
	err := c.get(ctx, "/api/v1/groups/"+url.PathEscape(group), &out)
	return out, err
}

func (c *httpShardClient) ReachableGroupsFromUser(ctx context.Context, user string) ([]string, error) {
	var out []string
	err := c.get(ctx, "/api/v1/users/"+url.PathEscape(user)+"/groups?indirect=true", &out)
	return out, err
}

type componentAccessPair struct {
	Item1 string `json:"item1"`
	Item2 string `json:"item2"`
}

func (c *httpShardClient) HasUserDirectAccessToComponent(ctx context.Context, user, component, access string) (bool, error) {
	var pairs []componentAccessPair
	if err := c.get(ctx, "/api/v1/users/"+url.PathEscape(user)+"/components", &pairs); err != nil {
		return false, err
	}
	return containsPair(pairs, component, access), nil
}

// HasGroupsAccessToComponent checks every group in groups that this shard
// owns; the coordinator only ever passes groups partitioned into this
// shard's hash range, so every name here is expected to resolve locally.
func (c *httpShardClient) HasGroupsAccessToComponent(ctx context.Context, groups []string, component, access string) (bool, error) {
	for _, g := range groups {
		var pairs []componentAccessPair
		if err := c.get(ctx, "/api/v1/groups/"+url.PathEscape(g)+"/components", &pairs); err != nil {
			return false, err
		}
		if containsPair(pairs, component, access) {
			return true, nil
		}
	}
	return false, nil
}

func containsPair(pairs []componentAccessPair, item1, item2 string) bool {
	for _, p := range pairs {
		if p.Item1 == item1 && p.Item2 == item2 {
			return true
		}
	}
	return false
}
