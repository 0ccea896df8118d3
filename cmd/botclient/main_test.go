package main

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tucoflyer/botclient/internal/bootstrap"
	"github.com/tucoflyer/botclient/internal/config"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/session"
)

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	reg := config.NewRegistry()
	require.NoError(t, reg.SetBot("lab", &config.Bot{URL: "ws://lab/ws", Key: "lab-key", FrameRate: 30}))
	require.NoError(t, reg.SetBot("field", &config.Bot{Descriptor: "/etc/field.txt"}))
	return reg
}

func fakeLookup(calls *[]string) lookupFunc {
	return func(_ context.Context, path string) (bootstrap.Descriptor, string, error) {
		*calls = append(*calls, path)
		if path == "/missing" {
			return bootstrap.Descriptor{}, "", bootstrap.NewDescriptorError("cannot read", errors.New("no such file"))
		}
		u, _ := url.Parse("http://bot.local/")
		return bootstrap.Descriptor{URL: u, Key: "desc-key"}, "ws://bot.local:8080/ws", nil
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name       string
		opts       monitorOptions
		wantTarget target
		wantLookup []string
		wantErr    bool
	}{
		{
			name:       "default profile",
			wantTarget: target{Profile: "lab", Endpoint: "ws://lab/ws", Key: "lab-key", FrameRate: 30},
		},
		{
			name:       "explicit url wins over profile",
			opts:       monitorOptions{URL: "ws://other/ws", Key: "k", Bot: "lab"},
			wantTarget: target{Endpoint: "ws://other/ws", Key: "k"},
		},
		{
			name: "descriptor flag",
			opts: monitorOptions{Descriptor: "/tmp/bot.txt", FrameRate: 10},
			wantTarget: target{
				Endpoint:  "ws://bot.local:8080/ws",
				Key:       "desc-key",
				KeySource: bootstrap.FileKeySource{Path: "/tmp/bot.txt"},
				FrameRate: 10,
			},
			wantLookup: []string{"/tmp/bot.txt"},
		},
		{
			name: "descriptor profile",
			opts: monitorOptions{Bot: "field"},
			wantTarget: target{
				Profile:   "field",
				Endpoint:  "ws://bot.local:8080/ws",
				Key:       "desc-key",
				KeySource: bootstrap.FileKeySource{Path: "/etc/field.txt"},
			},
			wantLookup: []string{"/etc/field.txt"},
		},
		{
			name:       "key flag replaces descriptor key",
			opts:       monitorOptions{Bot: "field", Key: "override"},
			wantTarget: target{Profile: "field", Endpoint: "ws://bot.local:8080/ws", Key: "override"},
			wantLookup: []string{"/etc/field.txt"},
		},
		{
			name:    "unknown profile",
			opts:    monitorOptions{Bot: "nope"},
			wantErr: true,
		},
		{
			name:       "descriptor failure",
			opts:       monitorOptions{Descriptor: "/missing"},
			wantLookup: []string{"/missing"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			got, err := resolveTarget(context.Background(), testRegistry(t), tt.opts, fakeLookup(&calls))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTarget, got)
			}
			assert.Equal(t, tt.wantLookup, calls)
		})
	}
}

func TestResolveTargetWithoutProfiles(t *testing.T) {
	var calls []string
	_, err := resolveTarget(context.Background(), config.NewRegistry(), monitorOptions{}, fakeLookup(&calls))
	require.ErrorIs(t, err, config.ErrNoBot)
	assert.NotEmpty(t, troubleshootingFor(err))
}

func TestTroubleshootingFor(t *testing.T) {
	assert.NotEmpty(t, troubleshootingFor(&session.ServerError{}))
	assert.NotEmpty(t, troubleshootingFor(bootstrap.NewDescriptorError("bad", nil)))
	assert.Nil(t, troubleshootingFor(bootstrap.NewHTTPError(503, "http://bot/ws")))
	assert.Nil(t, troubleshootingFor(errors.New("other")))
}

func TestMaskKeys(t *testing.T) {
	reg := testRegistry(t)
	masked := maskKeys(reg)

	assert.Equal(t, "********", masked.GetBot("lab").Key)
	assert.Empty(t, masked.GetBot("field").Key)
	assert.Equal(t, "lab-key", reg.GetBot("lab").Key, "original must be untouched")
}

func TestDigestCommand(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		hex     bool
		arg     string
		want    string
		wantErr bool
	}{
		{"text challenge", "k", false, "abc", protocol.Digest([]byte("abc"), "k"), false},
		{"hex challenge", "k", true, "0102ff", protocol.Digest([]byte{1, 2, 255}, "k"), false},
		{"bad hex", "k", true, "zz", "", true},
		{"missing key", "", false, "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digestKey, digestHex = tt.key, tt.hex
			t.Cleanup(func() { digestKey, digestHex = "", false })

			var out bytes.Buffer
			digestCmd.SetOut(&out)
			err := digestCmd.RunE(digestCmd, []string{tt.arg})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out.String())
		})
	}
}

func TestFrameRate(t *testing.T) {
	assert.Equal(t, 60, frameRate(0))
	assert.Equal(t, 25, frameRate(25))
}
