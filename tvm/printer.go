package tvm

import (
	"fmt"
	"io"
	"strings"
)

// Printer serializes an instruction tree to textual assembly. It
// picks the shortest equivalent mnemonic for every variant and never
// mutates the tree.
type Printer struct {
	w   io.Writer
	tab int
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print serializes node and its children.
func (p *Printer) Print(node Node) {
	switch n := node.(type) {
	case *Contract:
		p.contract(n)
	case *Function:
		p.function(n)
	case *CodeBlock:
		p.codeBlock(n)
	case *Loc:
		p.line(".loc %s, %d", n.File, n.Line)
	case *StackOp:
		p.stackOp(n)
	case *Glob:
		p.glob(n)
	case *DeclRetFlag:
		p.line("FALSE ; decl return flag")
	case *Opaque:
		p.Print(n.Block)
	case *AsymGen:
		p.line("%s", n.Opcode)
	case *HardCode:
		for _, s := range n.Code {
			p.line("%s", s)
		}
	case *GenOp:
		p.genOp(n)
	case *Return:
		switch n.Kind {
		case RET:
			p.line("RET")
		case IFRET:
			p.line("IFRET")
		case IFNOTRET:
			p.line("IFNOTRET")
		}
	case *ReturnOrBreakOrCont:
		p.line("; start return")
		p.Print(n.Body)
		p.line("; end return")
	case *Throw:
		p.line("%s", n.FullOpcode())
	case *PushCellOrSlice:
		p.cellOrSlice(n)
	case *SubProgram:
		p.subProgram(n)
	case *Condition:
		p.Print(n.TrueBody)
		p.Print(n.FalseBody)
		p.line("IFELSE")
	case *LogCircuit:
		p.line("PUSHCONT {")
		p.tab++
		p.Print(n.Body)
		p.tab--
		p.line("}")
		if n.Kind == LogAnd {
			p.line("IF")
		} else {
			p.line("IFNOT")
		}
	case *IfElse:
		p.ifElse(n)
	case *Repeat:
		p.Print(n.Body)
		p.line("REPEAT")
	case *Until:
		p.Print(n.Body)
		p.line("UNTIL")
	case *While:
		p.Print(n.Cond)
		p.Print(n.Body)
		p.line("WHILE")
	default:
		panic(fmt.Sprintf("tvm: printer: unknown node %T", node))
	}
}

func (p *Printer) contract(c *Contract) {
	for _, pragma := range c.Pragmas {
		fmt.Fprintf(p.w, "%s\n\n", pragma)
	}
	for _, f := range c.Functions {
		p.function(f)
	}
}

func (p *Printer) function(f *Function) {
	switch f.Kind {
	case PrivateFunction:
		fmt.Fprintf(p.w, ".globl\t%s\n", f.Name)
		fmt.Fprintf(p.w, ".type\t%s, @function\n", f.Name)
	case Macro, MacroGetter:
		fmt.Fprintf(p.w, ".macro %s\n", f.Name)
	case MainInternal:
		fmt.Fprintf(p.w, ".internal-alias :main_internal, 0\n.internal :main_internal\n")
	case MainExternal:
		fmt.Fprintf(p.w, ".internal-alias :main_external, -1\n.internal :main_external\n")
	case OnCodeUpgrade:
		fmt.Fprintf(p.w, ".internal-alias :onCodeUpgrade, 2\n.internal :onCodeUpgrade\n")
	case OnTickTock:
		fmt.Fprintf(p.w, ".internal-alias :onTickTock, -2\n.internal :onTickTock\n")
	}
	p.Print(f.Block)
	fmt.Fprintf(p.w, "\n")
}

func (p *Printer) codeBlock(b *CodeBlock) {
	if b.Kind != BlockInline {
		p.line("%s {", b.Kind)
		p.tab++
	}
	for _, in := range b.Instructions() {
		p.Print(in)
	}
	if b.Kind != BlockInline {
		p.tab--
		p.line("}")
	}
}

func (p *Printer) subProgram(s *SubProgram) {
	switch s.Kind {
	case CALLX:
		p.line("PUSHCONT {")
	case CALLREF:
		p.line("CALLREF {")
	}
	p.tab++
	p.Print(s.Block)
	p.tab--
	p.line("}")
	if s.Kind == CALLX {
		p.line("CALLX")
	}
}

func (p *Printer) ifElse(n *IfElse) {
	switch n.Kind {
	case IFREF, IFNOTREF, IFJMPREF, IFNOTJMPREF:
		var mnem string
		switch n.Kind {
		case IFREF:
			mnem = "IFREF"
		case IFNOTREF:
			mnem = "IFNOTREF"
		case IFJMPREF:
			mnem = "IFJMPREF"
		case IFNOTJMPREF:
			mnem = "IFNOTJMPREF"
		}
		p.line("%s {", mnem)
		p.tab++
		for _, in := range n.TrueBody.Instructions() {
			p.Print(in)
		}
		p.tab--
		p.line("}")
	default:
		p.Print(n.TrueBody)
		if n.FalseBody != nil {
			p.Print(n.FalseBody)
		}
		switch n.Kind {
		case IF:
			p.line("IF")
		case IFNOT:
			p.line("IFNOT")
		case IFJMP:
			p.line("IFJMP")
		case IFNOTJMP:
			p.line("IFNOTJMP")
		case IFELSE:
			p.line("IFELSE")
		case IFELSEWITHJMP:
			p.line("CONDSEL")
			p.line("JMPX")
		}
	}
}

func (p *Printer) genOp(g *GenOp) {
	full := g.FullOpcode()
	switch {
	case full == "BITNOT":
		p.line("NOT")
	case full == "TUPLE 1":
		p.line("SINGLE")
	case full == "TUPLE 2":
		p.line("PAIR")
	case full == "TUPLE 3":
		p.line("TRIPLE")
	case full == "UNTUPLE 1":
		p.line("UNSINGLE")
	case full == "UNTUPLE 2":
		p.line("UNPAIR")
	case full == "UNTUPLE 3":
		p.line("UNTRIPLE")
	case g.Opcode == "INDEX_EXCEP" || g.Opcode == "INDEX_NOEXCEP":
		index := mustAtoi(g.Arg)
		if index <= 15 {
			p.line("INDEX %d", index)
		} else {
			p.line("PUSHINT %d", index)
			p.line("INDEXVAR")
		}
	default:
		p.line("%s", full)
	}
}

func (p *Printer) cellOrSlice(n *PushCellOrSlice) {
	switch n.Kind {
	case PUSHREF:
		p.line("PUSHREF {")
	case PUSHREFSLICE:
		p.line("PUSHREFSLICE {")
	case CELL:
		p.line(".cell {")
	}
	p.tab++
	if n.Blob != "" {
		p.line("%s", n.Blob)
	}
	if n.Child != nil {
		p.cellOrSlice(n.Child)
	}
	p.tab--
	p.line("}")
}

func (p *Printer) glob(g *Glob) {
	switch g.Op {
	case GetGlob:
		if 1 <= g.Index && g.Index <= 31 {
			p.line("GETGLOB %d", g.Index)
		} else {
			p.line("PUSHINT %d", g.Index)
			p.line("GETGLOBVAR")
		}
	case SetGlob:
		if 1 <= g.Index && g.Index <= 31 {
			p.line("SETGLOB %d", g.Index)
		} else {
			p.line("PUSHINT %d", g.Index)
			p.line("SETGLOBVAR")
		}
	case PushRoot:
		p.line("PUSHROOT")
	case PopRoot:
		p.line("POPROOT")
	case PushC3:
		p.line("PUSH C3")
	case PopC3:
		p.line("POP C3")
	case PushC7:
		p.line("PUSH C7")
	case PopC7:
		p.line("POP C7")
	}
}

func (p *Printer) stackOp(s *StackOp) {
	i, j, k := s.I, s.J, s.K

	drop := func(n int) {
		switch {
		case n == 1:
			p.line("DROP")
		case n == 2:
			p.line("DROP2")
		case n <= 15:
			p.line("BLKDROP %d", n)
		default:
			p.line("PUSHINT %d", n)
			p.line("DROPX")
		}
	}

	switch s.Op {
	case DROP:
		drop(i)

	case PUSH:
		switch i {
		case 0:
			p.line("DUP")
		case 1:
			p.line("OVER")
		default:
			p.line("PUSH S%d", i)
		}

	case XCHG:
		if i == 0 {
			if j == 1 {
				p.line("SWAP")
			} else {
				p.line("XCHG S%d", j)
			}
		} else {
			p.line("XCHG S%d, S%d", i, j)
		}

	case BLKDROP2:
		if i > 15 || j > 15 {
			p.line("PUSHINT %d", i)
			p.line("PUSHINT %d", j)
			p.line("BLKSWX")
			drop(i)
		} else {
			p.line("BLKDROP2 %d, %d", i, j)
		}

	case PUSH2:
		switch {
		case i == 1 && j == 0:
			p.line("DUP2")
		case i == 3 && j == 2:
			p.line("OVER2")
		default:
			p.line("PUSH2 S%d, S%d", i, j)
		}

	case POP:
		if i == 1 {
			p.line("NIP")
		} else {
			p.line("POP S%d", i)
		}

	case BLKSWAP:
		bottom, top := i, j
		switch {
		case bottom == 1 && top == 1:
			p.line("SWAP")
		case bottom == 1 && top == 2:
			p.line("ROT")
		case bottom == 2 && top == 1:
			p.line("ROTREV")
		case bottom == 2 && top == 2:
			p.line("SWAP2")
		case 1 <= bottom && bottom <= 16 && 1 <= top && top <= 16:
			if bottom == 1 {
				p.line("ROLL %d", top)
			} else if top == 1 {
				p.line("ROLLREV %d", bottom)
			} else {
				p.line("BLKSWAP %d, %d", bottom, top)
			}
		default:
			p.line("PUSHINT %d", bottom)
			p.line("PUSHINT %d", top)
			p.line("BLKSWX")
		}

	case REVERSE:
		switch {
		case i == 2 && j == 0:
			p.line("SWAP")
		case i == 3 && j == 0:
			p.line("XCHG S2")
		case 2 <= i && i <= 17 && 0 <= j && j <= 15:
			p.line("REVERSE %d, %d", i, j)
		default:
			p.line("PUSHINT %d", i)
			p.line("PUSHINT %d", j)
			p.line("REVX")
		}

	case BLKPUSH:
		switch {
		case i == 2 && j == 1:
			p.line("DUP2")
		case i == 2 && j == 3:
			p.line("OVER2")
		default:
			// the compact encoding caps the count at 15
			rest := i
			for rest > 0 {
				n := rest
				if n > 15 {
					n = 15
				}
				p.line("BLKPUSH %d, %d", n, j)
				rest -= 15
			}
		}

	case PUSH3:
		p.line("PUSH3 S%d, S%d, S%d", i, j, k)

	case TUCK:
		p.line("TUCK")

	case PUXC:
		p.line("PUXC S%d, S%d", i, j)
	}
}

func (p *Printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s", strings.Repeat("\t", p.tab))
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintf(p.w, "\n")
}
