package sqlinfo

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// verbOf derives the statement verb from the outermost parse node: the node
// type name minus its Stmt suffix, upper-cased. SelectStmt becomes SELECT,
// InsertStmt becomes INSERT, AlterTableStmt becomes ALTERTABLE.
//
// A WITH wrapper never shows up here. The parser attaches CTEs to the
// statement they belong to, so a WITH-wrapped update is an UpdateStmt and
// classifies as UPDATE. Statements embedded inside CTE bodies do not
// contribute a verb of their own; only their table references are captured.
func verbOf(stmt protoreflect.Message) string {
	var inner protoreflect.Message
	stmt.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Message() != nil {
			inner = v.Message()
			return false
		}
		return true
	})
	if inner == nil {
		return ""
	}
	name := string(inner.Descriptor().Name())
	return strings.ToUpper(strings.TrimSuffix(name, "Stmt"))
}
