package tools

// ID identifies a local tool. The set is closed.
type ID int

const (
	ReadFile ID = iota + 1
	GenerateImage
	RunCode
)

// Tool names as sent to the model.
const (
	ReadFileName      = "READ_FILE"
	GenerateImageName = "GENERATE_IMAGE"
	RunCodeName       = "RUN_CODE"
)

// AllIDs returns every tool in registration order.
func AllIDs() []ID {
	return []ID{ReadFile, GenerateImage, RunCode}
}

func (id ID) String() string {
	switch id {
	case ReadFile:
		return ReadFileName
	case GenerateImage:
		return GenerateImageName
	case RunCode:
		return RunCodeName
	default:
		return "UNKNOWN"
	}
}

// ParseID maps a tool name to its ID.
func ParseID(name string) (ID, bool) {
	switch name {
	case ReadFileName:
		return ReadFile, true
	case GenerateImageName:
		return GenerateImage, true
	case RunCodeName:
		return RunCode, true
	default:
		return 0, false
	}
}
