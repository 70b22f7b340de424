// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

package filesrc

import (
	"testing"

	"github.com/Mossop/localns/internal/names"
)

func TestParseRecordsAllKinds(t *testing.T) {
	records, err := ParseRecords([]byte(`
foo.local:
  ipv4: 10.2.2.2
bar.local:
  ipv6: "::1"
alias.local:
  cname: foo.local
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}

	byName := map[string]names.Record{}
	for _, r := range records {
		byName[r.Name.String()] = r
	}

	if r, ok := byName["foo.local."]; !ok || r.RData.Kind() != names.KindA {
		t.Errorf("expected foo.local. to be an A record, got %+v", r)
	}
	if r, ok := byName["bar.local."]; !ok || r.RData.Kind() != names.KindAAAA {
		t.Errorf("expected bar.local. to be an AAAA record, got %+v", r)
	}
	if r, ok := byName["alias.local."]; !ok || r.RData.Kind() != names.KindCNAME {
		t.Errorf("expected alias.local. to be a CNAME record, got %+v", r)
	}
}

func TestParseRecordsRejectsUnknownKeys(t *testing.T) {
	_, err := ParseRecords([]byte(`
foo.local:
  ipv4: 10.2.2.2
  bogus: true
`))
	if err == nil {
		t.Fatalf("expected an error for an unknown key")
	}
}

func TestParseRecordsRejectsEntryWithNoValue(t *testing.T) {
	_, err := ParseRecords([]byte(`
foo.local: {}
`))
	if err == nil {
		t.Fatalf("expected an error for an entry with no ipv4/ipv6/cname")
	}
}
