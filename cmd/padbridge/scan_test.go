package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/srg/padbridge/internal/session"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ScanTestSuite struct {
	CommandTestSuite
}

func (s *ScanTestSuite) TestScanCmd_Help() {
	// GOAL: Verify scan command displays help text with all flags
	//
	// TEST SCENARIO: Execute scan --help → returns success → output contains description and flag documentation

	output, err := s.ExecuteCommand("scan", "--help")
	s.Require().NoError(err, "help command MUST succeed")

	s.Contains(output, "classify them as gamepad, hub or other", "help MUST contain command description")
	s.Contains(output, "--duration", "help MUST document --duration flag")
	s.Contains(output, "--format", "help MUST document --format flag")
}

func (s *ScanTestSuite) TestScanCmd_InvalidFormat() {
	// GOAL: Verify scan command rejects invalid format values
	//
	// TEST SCENARIO: Execute scan with invalid format → returns error → error message lists valid formats

	_, err := s.ExecuteCommand("scan", "--format=invalid")

	s.Require().Error(err, "invalid format MUST return error")
	s.Contains(err.Error(), "invalid format 'invalid': must be one of [table json]", "error MUST list valid formats")
	s.Adapter.AssertNotCalled(s.T(), "Scan", mock.Anything, mock.Anything)
}

func (s *ScanTestSuite) TestScanCmd_Table() {
	// GOAL: Verify the table lists every discovered device with its kind
	//
	// TEST SCENARIO: three advertisements → table output → header plus one classified row each

	s.Advertise()

	output, err := s.ExecuteCommand("scan")
	s.Require().NoError(err, "scan MUST succeed")

	s.Contains(output, "KIND")
	s.Regexp(`gamepad\s+Xbox Wireless Controller\s+00:00:00:00:00:01\s+-48 dBm`, output, "gamepad row MUST be classified")
	s.Regexp(`hub\s+Technic Move\s+00:00:00:00:00:02\s+-61 dBm`, output, "hub row MUST be classified")
	s.Regexp(`other\s+Speaker`, output, "unrelated device MUST be listed as other")
}

func (s *ScanTestSuite) TestScanCmd_JSON() {
	// GOAL: Verify JSON output is machine-readable and keeps discovery order
	//
	// TEST SCENARIO: three advertisements → --format json → array of three entries in advertisement order

	s.Advertise()

	output, err := s.ExecuteCommand("scan", "--format", "json")
	s.Require().NoError(err, "scan MUST succeed")

	var entries []scanEntry
	s.Require().NoError(json.Unmarshal([]byte(output), &entries), "output MUST be valid JSON: %s", output)
	s.Require().Len(entries, 3)
	s.Equal("other", entries[0].Kind)
	s.Equal(scanEntry{
		Name:     "Xbox Wireless Controller",
		Address:  TestGamepadAddress,
		RSSI:     -48,
		Kind:     "gamepad",
		Services: []string{"1812"},
	}, entries[1])
	s.Equal("hub", entries[2].Kind)
}

func (s *ScanTestSuite) TestScanCmd_AdapterFailure() {
	// GOAL: Verify scan errors reach the caller instead of an empty table
	//
	// TEST SCENARIO: adapter Scan fails → command returns wrapped error

	s.Adapter.On("Scan", mock.Anything, false).Return(errors.New("adapter busy"))

	_, err := s.ExecuteCommand("scan")
	s.Require().Error(err)
	s.Contains(err.Error(), "adapter busy")
}

func TestScanTestSuite(t *testing.T) {
	suite.Run(t, new(ScanTestSuite))
}

func TestWriteScanTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeScanTable(&buf, nil); err != nil {
		t.Fatalf("writeScanTable MUST succeed: %v", err)
	}
	if buf.String() != "No devices discovered\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWriteScanTable_TruncatesLongNames(t *testing.T) {
	var buf bytes.Buffer
	devices := []session.DiscoveredDevice{{
		Name:    "A Remarkably Long Controller Name",
		Address: "00:00:00:00:00:09",
		RSSI:    -70,
	}}
	if err := writeScanTable(&buf, devices); err != nil {
		t.Fatalf("writeScanTable MUST succeed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("A Remarkably Long Con...")) {
		t.Fatalf("long name MUST be truncated: %q", buf.String())
	}
}
