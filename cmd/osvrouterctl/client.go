package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type diversion struct {
	ID              string `json:"id"`
	Protocols       string `json:"protocols"`
	Interface       string `json:"interface"`
	HostIfName      string `json:"host_if_name"`
	SwIfIndex       uint32 `json:"sw_if_index"`
	ShadowSwIfIndex uint32 `json:"shadow_sw_if_index"`
}

type mapping struct {
	Fastpath  uint32 `json:"fastpath_sw_if_index"`
	Shadow    uint32 `json:"shadow_sw_if_index"`
	Protocols string `json:"protocols"`
}

type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	return &client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) createDiversion(command string) (*diversion, error) {
	body, _ := json.Marshal(map[string]string{"command": command})
	resp, err := c.http.Post(c.base+"/v1/diversions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.apiError(resp)
	}
	var rec diversion
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *client) deleteDiversion(ifName string) error {
	u := c.base + "/v1/diversions?interface=" + url.QueryEscape(ifName)
	req, err := http.NewRequest(http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.apiError(resp)
	}
	return nil
}

func (c *client) listDiversions() ([]diversion, error) {
	resp, err := c.http.Get(c.base + "/v1/diversions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out []diversion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listMappings() ([]mapping, error) {
	resp, err := c.http.Get(c.base + "/v1/mappings")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out []mapping
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) apiError(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s", apiErr.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
