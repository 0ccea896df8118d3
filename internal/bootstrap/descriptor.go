package bootstrap

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Descriptor is the parsed content of a bot descriptor.
type Descriptor struct {
	// URL is the bot's web URL as written in the descriptor.
	URL *url.URL

	// Key is the shared authentication secret.
	Key string
}

// LookupURL returns the endpoint lookup address <scheme>://<host>/ws.
func (d Descriptor) LookupURL() string {
	u := url.URL{Scheme: d.URL.Scheme, Host: d.URL.Host, Path: "/ws"}
	return u.String()
}

// ParseDescriptor extracts the first absolute http(s) URL in text and the
// key carried in it.
func ParseDescriptor(text string) (Descriptor, error) {
	for _, token := range strings.Fields(text) {
		u, err := url.Parse(token)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}

		key := u.Query().Get("k")
		if key == "" {
			key = fragmentKey(u.Fragment)
		}
		if key == "" {
			return Descriptor{}, NewDescriptorError(fmt.Sprintf("URL %s has no key parameter k", u.Redacted()), nil)
		}
		return Descriptor{URL: u, Key: key}, nil
	}
	return Descriptor{}, NewDescriptorError("no http(s) URL found", nil)
}

// fragmentKey reads k from a fragment such as "?k=abc" or "/view?k=abc".
func fragmentKey(fragment string) string {
	if i := strings.IndexByte(fragment, '?'); i >= 0 {
		fragment = fragment[i+1:]
	}
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return ""
	}
	return values.Get("k")
}

// ReadDescriptorFile reads and parses a descriptor file.
func ReadDescriptorFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, NewDescriptorError(fmt.Sprintf("cannot read %s", path), err)
	}
	return ParseDescriptor(string(data))
}

// FileKeySource reads the key from a descriptor file on every call.
type FileKeySource struct {
	Path string
}

// Key implements session.KeySource.
func (f FileKeySource) Key() (string, error) {
	d, err := ReadDescriptorFile(f.Path)
	if err != nil {
		return "", err
	}
	return d.Key, nil
}
