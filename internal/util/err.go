package util

type PowerCmdError = int

// general
const (
	ErrorSuccess       PowerCmdError = 0
	ErrorExecuteFailed PowerCmdError = 1
	ErrorCmdArg        PowerCmdError = 2
	ErrorNetwork       PowerCmdError = 3
	ErrorBackend       PowerCmdError = 4
	ErrorConfig        PowerCmdError = 5
)
