// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package timesync

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geopose_telemetry/internal/stats"
	"github.com/relabs-tech/geopose_telemetry/internal/transport/transporttest"
)

const (
	reqTopic  = "time/sync/req"
	respTopic = "time/sync/resp"
)

func newTestResponder(clock func() time.Time) (*Responder, *transporttest.Loopback) {
	lb := transporttest.New()
	r := NewResponder(reqTopic, respTopic, lb, stats.NewPrometheusStats())
	if clock != nil {
		r.now = clock
	}
	return r, lb
}

func TestOnMessageAnswersRequest(t *testing.T) {
	r, lb := newTestResponder(nil)
	before := time.Now().UnixMilli()

	r.OnMessage(reqTopic, []byte(`{"t1": 12345}`))

	msgs := lb.Published("")
	require.Len(t, msgs, 1)
	require.Equal(t, respTopic, msgs[0].Topic)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &fields))
	require.Len(t, fields, 3)
	require.Equal(t, "12345", string(fields["t1"]))

	var resp struct{ T2, T3 int64 }
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &resp))
	require.LessOrEqual(t, resp.T2, resp.T3)
	require.GreaterOrEqual(t, resp.T2, before)
	require.LessOrEqual(t, resp.T3, time.Now().UnixMilli())
}

func TestOnMessageWireFormat(t *testing.T) {
	ticks := []time.Time{time.UnixMilli(1000), time.UnixMilli(1001)}
	i := 0
	r, lb := newTestResponder(func() time.Time {
		now := ticks[i]
		i++
		return now
	})

	r.OnMessage(reqTopic, []byte(`{"t1":1700000000123.5}`))

	msgs := lb.Published(respTopic)
	require.Len(t, msgs, 1)
	require.Equal(t, `{"t1":1700000000123.5,"t2":1000,"t3":1001}`, string(msgs[0].Payload))
}

func TestOnMessageIgnoresOtherTopics(t *testing.T) {
	r, lb := newTestResponder(nil)

	r.OnMessage("telemetry/geopose", []byte(`{"t1":12345}`))
	r.OnMessage(respTopic, []byte(`{"t1":12345}`))

	require.Empty(t, lb.Published(""))
}

func TestOnMessageDropsInvalidPayloads(t *testing.T) {
	payloads := []string{
		`not json`,
		`{"t1":"abc"}`,
		`{"t1":"12345"}`,
		`{"t1":null}`,
		`{"t1":true}`,
		`{"t1":{"v":1}}`,
		`{"t0":12345}`,
		`[12345]`,
		`12345`,
		``,
	}

	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			r, lb := newTestResponder(nil)
			require.NotPanics(t, func() { r.OnMessage(reqTopic, []byte(p)) })
			require.Empty(t, lb.Published(""))
		})
	}
}

func TestOnMessagePublishFailureIsAbsorbed(t *testing.T) {
	r, lb := newTestResponder(nil)
	lb.SetPublishErr(errors.New("not connected"))

	require.NotPanics(t, func() { r.OnMessage(reqTopic, []byte(`{"t1":1}`)) })
	require.Empty(t, lb.Published(""))
}

func TestResponderThroughLoopback(t *testing.T) {
	r, lb := newTestResponder(nil)
	require.NoError(t, lb.Subscribe(reqTopic, r.OnMessage))

	lb.Deliver(reqTopic, []byte(`{"t1":42}`))
	lb.Deliver("other/topic", []byte(`{"t1":42}`))

	require.Len(t, lb.Published(respTopic), 1)
}
