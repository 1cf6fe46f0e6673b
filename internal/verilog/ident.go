package verilog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/roach88/yinglong/internal/ir"
)

var simpleIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// keywords are the Verilog-2005 reserved words an IR name could collide with.
var keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`
		always and assign automatic begin buf bufif0 bufif1 case casex casez cell
		cmos config deassign default defparam design disable edge else end endcase
		endconfig endfunction endgenerate endmodule endprimitive endspecify endtable
		endtask event for force forever fork function generate genvar highz0 highz1
		if ifnone incdir include initial inout input instance integer join large
		liblist library localparam macromodule medium module nand negedge nmos nor
		noshowcancelled not notif0 notif1 or output parameter pmos posedge primitive
		pull0 pull1 pulldown pullup pulsestyle_onevent pulsestyle_ondetect rcmos real
		realtime reg release repeat rnmos rpmos rtran rtranif0 rtranif1 scalared
		showcancelled signed small specify specparam strong0 strong1 supply0 supply1
		table task time tran tranif0 tranif1 tri tri0 tri1 triand trior trireg unsigned
		use uwire vectored wait wand weak0 weak1 while wire wor xnor xor`) {
		keywords[k] = true
	}
}

// Ident renders name as a Verilog identifier. Names that are not simple
// identifiers, or that are keywords, become escaped identifiers: a
// backslash, the name, and a terminating space.
func Ident(name string) (string, error) {
	if simpleIdent.MatchString(name) && !keywords[name] {
		return name, nil
	}
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("identifier %q contains whitespace or control characters", name)
		}
	}
	return `\` + name + " ", nil
}

// RenderBind renders a binding for a port or net declaration. It returns ""
// for zero-width bindings, which are omitted from the output. SInt bindings
// are declared signed.
func RenderBind(name string, t ir.Type) (string, error) {
	w, ok := t.ResolvedWidth()
	if !ok {
		return "", fmt.Errorf("binding %q has unresolved type %s", name, t)
	}
	id, err := Ident(name)
	if err != nil {
		return "", err
	}
	if w == 0 {
		return "", nil
	}
	if w > 1 {
		id = fmt.Sprintf("[%d:0] %s", w-1, id)
	}
	if t.Kind() == ir.KindSInt {
		id = "signed " + id
	}
	return id, nil
}
