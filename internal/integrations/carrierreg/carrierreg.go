package carrierreg

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Client fetches the public carrier registry feed, an XML document mapping
// provider codes to display names:
//
//	<CarrierRegistry>
//	    <Carrier code="carrier-a" name="Carrier A Mobile"/>
//	</CarrierRegistry>
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger

	mu    sync.RWMutex
	names map[string]string
}

// NewClient initializes a carrier registry client for the given feed URL
func NewClient(url string, log *logrus.Logger) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:   log,
		names: make(map[string]string),
	}
}

// Refresh fetches and parses the feed, replacing the cached name table
func (c *Client) Refresh() error {
	body, err := c.fetch()
	if err != nil {
		return err
	}

	names, err := c.parseFeed(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()

	c.log.Infof("Carrier registry refreshed: %d entries", len(names))
	return nil
}

func (c *Client) fetch() ([]byte, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("Carrier registry XML response: %s", string(body))
	return body, nil
}

// parseFeed extracts code/name pairs from the registry XML
func (c *Client) parseFeed(rawBody []byte) (map[string]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %v", err)
	}

	carriers := doc.FindElements("//CarrierRegistry/Carrier")
	if len(carriers) == 0 {
		return nil, fmt.Errorf("no carrier entries found in XML")
	}

	names := make(map[string]string, len(carriers))
	for _, el := range carriers {
		code := el.SelectAttrValue("code", "")
		name := el.SelectAttrValue("name", "")
		if code == "" || name == "" {
			continue
		}
		names[code] = name
	}
	return names, nil
}

// DisplayName resolves a provider code to its registry display name
func (c *Client) DisplayName(code string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[code]
	return name, ok
}

// Names returns a copy of the cached registry table
func (c *Client) Names() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.names))
	for code, name := range c.names {
		out[code] = name
	}
	return out
}
