package main

import (
	"bytes"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/hub"
	"github.com/srg/padbridge/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Test device addresses for consistent mock device identification
const (
	TestGamepadAddress = "00:00:00:00:00:01"
	TestHubAddress     = "00:00:00:00:00:02"
)

// CommandTestSuite runs commands through rootCmd against a mock adapter.
// All cmd/padbridge test suites should embed this.
type CommandTestSuite struct {
	suite.Suite

	Adapter *testutils.MockAdapter
	HubChar *testutils.MockCharacteristic
	Hub     *testutils.MockClient

	originalAdapter func(*logrus.Logger) device.Adapter
	originalNoColor bool
}

func (s *CommandTestSuite) SetupTest() {
	s.originalAdapter = newAdapter
	s.originalNoColor = color.NoColor
	color.NoColor = true

	s.Adapter = &testutils.MockAdapter{}
	newAdapter = func(*logrus.Logger) device.Adapter { return s.Adapter }

	s.HubChar = testutils.NewMockCharacteristic(hub.CharacteristicUUID)
	s.HubChar.On("Write", mock.Anything, false, mock.Anything).Return(nil).Maybe()
	s.Hub = testutils.NewMockClient(TestHubAddress).WithService(
		testutils.NewMockService(hub.ServiceUUID).WithCharacteristic(s.HubChar))
	s.Hub.On("Pair", mock.Anything).Return(nil).Maybe()
	s.Hub.On("Disconnect").Return(nil).Maybe()
}

func (s *CommandTestSuite) TearDownTest() {
	newAdapter = s.originalAdapter
	color.NoColor = s.originalNoColor
	resetFlags(rootCmd)
}

// Advertise makes the next scan report a gamepad, a hub and an unrelated device.
func (s *CommandTestSuite) Advertise() {
	s.Adapter.Advertisements = []device.Advertisement{
		&testutils.Advertisement{Name: "Speaker", Address: "00:00:00:00:00:03", Signal: -85},
		&testutils.Advertisement{
			Name: "Xbox Wireless Controller", Address: TestGamepadAddress, Signal: -48,
			ServiceUUIDs: []string{gamepad.HIDServiceUUID},
		},
		&testutils.Advertisement{Name: "Technic Move", Address: TestHubAddress, Signal: -61},
	}
	s.Adapter.On("Scan", mock.Anything, false).Return(nil)
}

// ExpectHubDial routes a dial of TestHubAddress to the mock hub.
func (s *CommandTestSuite) ExpectHubDial() {
	s.Adapter.On("Dial", mock.Anything, TestHubAddress).Return(s.Hub, nil)
}

// ExecuteCommand runs rootCmd with args, returns combined output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default,
// since cobra keeps parsed values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
