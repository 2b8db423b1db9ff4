package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

var (
	eventQueriesServed  atomic.Int64
	fileSearchesServed  atomic.Int64
	recordsRedacted     atomic.Int64
	entriesAnonymized   atomic.Int64
	cacheHits           atomic.Int64
	cacheMisses         atomic.Int64
	relayRecordsIn      atomic.Int64
	relayRecordsOut     atomic.Int64
	mappingEntriesTotal atomic.Int64
	mappingSaves        atomic.Int64
	mappingSaveFailures atomic.Int64
)

func ObserveEventQuery(records int) {
	eventQueriesServed.Add(1)
	recordsRedacted.Add(int64(records))
}

func ObserveFileSearch(entries int) {
	fileSearchesServed.Add(1)
	entriesAnonymized.Add(int64(entries))
}

func ObserveCache(hit bool) {
	if hit {
		cacheHits.Add(1)
	} else {
		cacheMisses.Add(1)
	}
}

func ObserveRelay(in, out int) {
	relayRecordsIn.Add(int64(in))
	relayRecordsOut.Add(int64(out))
}

func ObserveMappingSize(total int) {
	mappingEntriesTotal.Store(int64(total))
}

func ObserveMappingSave(err error) {
	if err != nil {
		mappingSaveFailures.Add(1)
		return
	}
	mappingSaves.Add(1)
}

type Snapshot struct {
	EventQueriesServed  int64 `json:"eventQueriesServed"`
	FileSearchesServed  int64 `json:"fileSearchesServed"`
	RecordsRedacted     int64 `json:"recordsRedacted"`
	EntriesAnonymized   int64 `json:"entriesAnonymized"`
	CacheHits           int64 `json:"cacheHits"`
	CacheMisses         int64 `json:"cacheMisses"`
	RelayRecordsIn      int64 `json:"relayRecordsIn"`
	RelayRecordsOut     int64 `json:"relayRecordsOut"`
	MappingEntriesTotal int64 `json:"mappingEntriesTotal"`
	MappingSaves        int64 `json:"mappingSaves"`
	MappingSaveFailures int64 `json:"mappingSaveFailures"`
}

func Current() Snapshot {
	return Snapshot{
		EventQueriesServed:  eventQueriesServed.Load(),
		FileSearchesServed:  fileSearchesServed.Load(),
		RecordsRedacted:     recordsRedacted.Load(),
		EntriesAnonymized:   entriesAnonymized.Load(),
		CacheHits:           cacheHits.Load(),
		CacheMisses:         cacheMisses.Load(),
		RelayRecordsIn:      relayRecordsIn.Load(),
		RelayRecordsOut:     relayRecordsOut.Load(),
		MappingEntriesTotal: mappingEntriesTotal.Load(),
		MappingSaves:        mappingSaves.Load(),
		MappingSaveFailures: mappingSaveFailures.Load(),
	}
}

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Current())
	})
}
