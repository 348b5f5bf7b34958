package tapsync

import (
	"bufio"
	"bytes"
	"context"
	"net/url"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/tap-nomad/pkg/catalog"
	"github.com/ajitpratap0/tap-nomad/pkg/client"
	"github.com/ajitpratap0/tap-nomad/pkg/config"
	"github.com/ajitpratap0/tap-nomad/pkg/singer"
	"github.com/ajitpratap0/tap-nomad/pkg/state"
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

type scriptPager struct {
	pages [][]gojson.RawMessage
	err   error
	i     int
}

func (p *scriptPager) Next(ctx context.Context) ([]gojson.RawMessage, bool, error) {
	if p.i < len(p.pages) {
		page := p.pages[p.i]
		p.i++
		return page, true, nil
	}
	if p.err != nil {
		return nil, false, p.err
	}
	return nil, false, nil
}

// pathFetcher scripts one pager per endpoint path; unscripted paths return
// an empty collection.
type pathFetcher struct {
	pagers map[string]*scriptPager
}

func (f *pathFetcher) Fetch(path string, params url.Values) client.Pager {
	if pager, ok := f.pagers[path]; ok {
		return pager
	}
	return &scriptPager{}
}

func page(elems ...string) []gojson.RawMessage {
	out := make([]gojson.RawMessage, 0, len(elems))
	for _, e := range elems {
		out = append(out, gojson.RawMessage(e))
	}
	return out
}

func selectStreams(names ...string) *catalog.Catalog {
	c := &catalog.Catalog{}
	for _, name := range names {
		c.Streams = append(c.Streams, catalog.Entry{Stream: name, Selected: true})
	}
	return c
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var messages []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var msg map[string]interface{}
		require.NoError(t, gojson.Unmarshal(scanner.Bytes(), &msg))
		messages = append(messages, msg)
	}
	require.NoError(t, scanner.Err())
	return messages
}

func newOrchestrator(t *testing.T, fetcher *pathFetcher, buf *bytes.Buffer) *Orchestrator {
	t.Helper()
	return New(catalog.Default(), fetcher, config.New(), singer.NewWriter(buf), zaptest.NewLogger(t))
}

func TestRunPartialFailureIsolation(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/jobs": {
			pages: [][]gojson.RawMessage{
				page(`{"ID":"a","ModifyIndex":1}`, `{"ID":"b","ModifyIndex":2}`),
				page(`{"ID":"c","ModifyIndex":3}`, `{"ID":"d","ModifyIndex":4}`),
			},
			err: taperrors.New(taperrors.ErrorTypeSourceUnavailable, "retries exhausted"),
		},
		"/v1/nodes":       {pages: [][]gojson.RawMessage{page(`{"ID":"n1"}`)}},
		"/v1/deployments": {pages: [][]gojson.RawMessage{page(`{"ID":"d1","ModifyIndex":9}`)}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	st := state.New()
	summary, err := o.Run(context.Background(), selectStreams("jobs", "nodes", "deployments"), st)
	require.NoError(t, err, "a stream failure must not fail the run")

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "jobs", failed[0].Stream)
	assert.True(t, taperrors.IsType(failed[0].Err, taperrors.ErrorTypeSourceUnavailable))
	assert.Equal(t, int64(4), failed[0].Records)

	// The failed stream's bookmark reflects exactly its committed pages
	jobsIndex, ok := st.ReplicationValue("jobs", "ModifyIndex")
	require.True(t, ok)
	assert.Equal(t, uint64(4), jobsIndex)

	// Siblings ran to completion and committed state
	assert.Equal(t, true, st.Bookmark("nodes")["completed"])
	depIndex, ok := st.ReplicationValue("deployments", "ModifyIndex")
	require.True(t, ok)
	assert.Equal(t, uint64(9), depIndex)

	assert.Equal(t, int64(6), summary.Records())
}

func TestRunMessageOrdering(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/jobs": {pages: [][]gojson.RawMessage{
			page(`{"ID":"a","ModifyIndex":1}`),
			page(`{"ID":"b","ModifyIndex":2}`),
		}},
		"/v1/nodes": {pages: [][]gojson.RawMessage{page(`{"ID":"n1"}`)}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	_, err := o.Run(context.Background(), selectStreams("jobs", "nodes"), state.New())
	require.NoError(t, err)

	messages := decodeLines(t, &buf)
	require.NotEmpty(t, messages)

	// SCHEMA precedes the first RECORD of its stream
	schemaSeen := map[string]bool{}
	for _, msg := range messages {
		switch msg["type"] {
		case "SCHEMA":
			schemaSeen[msg["stream"].(string)] = true
		case "RECORD":
			assert.True(t, schemaSeen[msg["stream"].(string)],
				"RECORD for %s before its SCHEMA", msg["stream"])
		}
	}

	// No RECORD may follow the STATE that covered it: within one stream,
	// each STATE closes over all records emitted so far
	var jobsRecords, jobsRecordsAtLastState int
	for _, msg := range messages {
		if msg["stream"] == "jobs" && msg["type"] == "RECORD" {
			jobsRecords++
		}
		if msg["type"] == "STATE" {
			jobsRecordsAtLastState = jobsRecords
		}
	}
	assert.Equal(t, jobsRecords, jobsRecordsAtLastState)

	// The run closes with a cumulative STATE
	assert.Equal(t, "STATE", messages[len(messages)-1]["type"])
}

func TestRunStateMessagesPerBatch(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/jobs": {pages: [][]gojson.RawMessage{
			page(`{"ID":"a","ModifyIndex":1}`),
			page(`{"ID":"b","ModifyIndex":2}`),
		}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)
	_, err := o.Run(context.Background(), selectStreams("jobs"), state.New())
	require.NoError(t, err)

	var bookmarks []uint64
	for _, msg := range decodeLines(t, &buf) {
		if msg["type"] != "STATE" {
			continue
		}
		value := msg["value"].(map[string]interface{})
		if all, ok := value["bookmarks"].(map[string]interface{}); ok {
			if jobs, ok := all["jobs"].(map[string]interface{}); ok {
				if v, ok := state.CoerceIndex(jobs["ModifyIndex"]); ok {
					bookmarks = append(bookmarks, v)
				}
			}
		}
	}

	// Two per-page commits plus the run-end STATE; values never decrease
	require.Len(t, bookmarks, 3)
	assert.Equal(t, []uint64{1, 2, 2}, bookmarks)
}

func TestRunEmptySelectionIsFatal(t *testing.T) {
	var buf bytes.Buffer
	o := newOrchestrator(t, &pathFetcher{}, &buf)

	summary, err := o.Run(context.Background(), selectStreams(), state.New())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
	assert.Empty(t, buf.Bytes(), "a fatal run emits nothing")
}

func TestRunNilStateIsFatal(t *testing.T) {
	var buf bytes.Buffer
	o := newOrchestrator(t, &pathFetcher{}, &buf)

	_, err := o.Run(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeStateCorruption))
}

func TestStopSkipsRemainingStreams(t *testing.T) {
	var buf bytes.Buffer
	o := newOrchestrator(t, &pathFetcher{}, &buf)
	o.Stop()

	summary, err := o.Run(context.Background(), nil, state.New())
	require.NoError(t, err)

	require.Len(t, summary.Results, catalog.Default().Len())
	for _, r := range summary.Results {
		assert.True(t, r.Skipped)
	}

	// Even a fully skipped run closes with its STATE
	messages := decodeLines(t, &buf)
	require.Len(t, messages, 1)
	assert.Equal(t, "STATE", messages[0]["type"])
}

func TestRunFieldOverridesNarrowOutput(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/nodes": {pages: [][]gojson.RawMessage{page(`{"ID":"n1","Status":"ready"}`)}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	user := &catalog.Catalog{Streams: []catalog.Entry{
		{Stream: "nodes", Selected: true, Fields: map[string]bool{"Status": false}},
	}}
	_, err := o.Run(context.Background(), user, state.New())
	require.NoError(t, err)

	for _, msg := range decodeLines(t, &buf) {
		switch msg["type"] {
		case "SCHEMA":
			properties := msg["schema"].(map[string]interface{})["properties"].(map[string]interface{})
			assert.NotContains(t, properties, "Status")
			assert.Contains(t, properties, "ID")
		case "RECORD":
			record := msg["record"].(map[string]interface{})
			assert.NotContains(t, record, "Status", "deselected field leaked into output")
			assert.Equal(t, "n1", record["ID"])
		}
	}
}

func TestRunUnknownCatalogEntryFailsThatEntry(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/nodes": {pages: [][]gojson.RawMessage{page(`{"ID":"n1"}`)}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	summary, err := o.Run(context.Background(), selectStreams("nodes", "evaluatons"), state.New())
	require.NoError(t, err, "an unknown entry fails that entry, not the run")

	require.Len(t, summary.Results, 2)
	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "evaluatons", failed[0].Stream)
	assert.True(t, taperrors.IsType(failed[0].Err, taperrors.ErrorTypeUnknownStream))

	// The known stream still ran
	assert.Equal(t, int64(1), summary.Records())
}

func TestRunOnlyUnknownEntriesIsFatal(t *testing.T) {
	var buf bytes.Buffer
	o := newOrchestrator(t, &pathFetcher{}, &buf)

	summary, err := o.Run(context.Background(), selectStreams("evaluatons"), state.New())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeConfig))
}

func TestRunFatalReturnsAccumulatedSummary(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/jobs": {pages: [][]gojson.RawMessage{page(`{"ID":"a","ModifyIndex":1}`)}},
		"/v1/allocations": {
			err: taperrors.New(taperrors.ErrorTypeStateCorruption, "state diverged"),
		},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	summary, err := o.Run(context.Background(), selectStreams("jobs", "allocations", "nodes"), state.New())
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeStateCorruption))

	// The summary up to the fatal stream survives for reporting
	require.NotNil(t, summary)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "jobs", summary.Results[0].Stream)
	assert.NoError(t, summary.Results[0].Err)
	assert.Equal(t, "allocations", summary.Results[1].Stream)
}

func TestRunResumeEmitsNoRecords(t *testing.T) {
	fetcher := &pathFetcher{pagers: map[string]*scriptPager{
		"/v1/jobs": {pages: [][]gojson.RawMessage{
			page(`{"ID":"a","ModifyIndex":1}`, `{"ID":"b","ModifyIndex":2}`),
		}},
	}}

	var buf bytes.Buffer
	o := newOrchestrator(t, fetcher, &buf)

	st := state.New()
	st.SetBookmark("jobs", state.Bookmark{"ModifyIndex": uint64(2)})

	summary, err := o.Run(context.Background(), selectStreams("jobs"), st)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Records())

	for _, msg := range decodeLines(t, &buf) {
		assert.NotEqual(t, "RECORD", msg["type"])
	}

	final, _ := st.ReplicationValue("jobs", "ModifyIndex")
	assert.Equal(t, uint64(2), final)
}
