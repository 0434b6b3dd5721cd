package types

import "fmt"

// Operation is the intent carried by a drain invocation. The storage
// resource is only ever emptied on OperationDelete; the other two are
// acknowledged without touching any object.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationCreate:
		return OperationCreate, nil
	case OperationUpdate:
		return OperationUpdate, nil
	case OperationDelete:
		return OperationDelete, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}
