package tvm

import (
	"fmt"
	"strings"
)

// effect is a declared stack effect for one mnemonic.
type effect struct {
	take int
	ret  int
	pure bool
}

// fixedEffects maps argument-independent mnemonics to their effects.
// Purity means: cannot throw and does not mutate globals.
var fixedEffects = map[string]effect{
	// integer arithmetic
	"ADD":       {2, 1, false},
	"SUB":       {2, 1, false},
	"MUL":       {2, 1, false},
	"DIV":       {2, 1, false},
	"MOD":       {2, 1, false},
	"MULDIV":    {3, 1, false},
	"MULDIVR":   {3, 1, false},
	"MULDIVMOD": {3, 2, false},
	"INC":       {1, 1, false},
	"DEC":       {1, 1, false},
	"NEGATE":    {1, 1, false},
	"ABS":       {1, 1, false},
	"MIN":       {2, 1, false},
	"MAX":       {2, 1, false},
	"POW2":      {1, 1, false},
	"BITSIZE":   {1, 1, true},
	"UBITSIZE":  {1, 1, false},
	"SGN":       {1, 1, true},

	// comparison
	"EQUAL":   {2, 1, true},
	"NEQ":     {2, 1, true},
	"LESS":    {2, 1, true},
	"LEQ":     {2, 1, true},
	"GREATER": {2, 1, true},
	"GEQ":     {2, 1, true},
	"CMP":     {2, 1, true},
	"ISNULL":  {1, 1, true},

	// boolean
	"AND":    {2, 1, true},
	"OR":     {2, 1, true},
	"XOR":    {2, 1, true},
	"NOT":    {1, 1, true},
	"BITNOT": {1, 1, true},

	// constants
	"TRUE":    {0, 1, true},
	"FALSE":   {0, 1, true},
	"NULL":    {0, 1, true},
	"NEWDICT": {0, 1, true},
	"NEWC":    {0, 1, true},

	// tuples
	"UNPAIR":       {1, 2, false},
	"SETINDEXVAR":  {3, 1, false},
	"SETINDEXVARQ": {3, 1, false},
	"INDEXVAR":     {2, 1, false},
	"TLEN":         {1, 1, false},

	// cells, slices, builders
	"CTOS":        {1, 1, false},
	"ENDS":        {1, 0, false},
	"ENDC":        {1, 1, false},
	"LDREF":       {1, 2, false},
	"PLDREF":      {1, 1, false},
	"LDREFRTOS":   {1, 2, false},
	"LDMSGADDR":   {1, 2, false},
	"LDDICT":      {1, 2, false},
	"PLDDICT":     {1, 1, false},
	"SKIPDICT":    {1, 1, false},
	"LDSLICEX":    {2, 2, false},
	"SDSKIPFIRST": {2, 1, false},
	"LDGRAMS":     {1, 2, false},
	"STGRAMS":     {2, 1, false},
	"LDVARUINT32": {1, 2, false},
	"STVARUINT32": {2, 1, false},
	"STSLICE":     {2, 1, false},
	"STSLICER":    {2, 1, false},
	"STREF":       {2, 1, false},
	"STREFR":      {2, 1, false},
	"STBREF":      {2, 1, false},
	"STBREFR":     {2, 1, false},
	"STB":         {2, 1, false},
	"STBR":        {2, 1, false},
	"STDICT":      {2, 1, false},
	"STCONT":      {2, 1, false},
	"STONE":       {1, 1, false},
	"STZERO":      {1, 1, false},
	"STONES":      {2, 1, false},
	"STZEROES":    {2, 1, false},
	"SBITS":       {1, 1, true},
	"SREFS":       {1, 1, true},
	"BBITS":       {1, 1, true},
	"BREFS":       {1, 1, true},
	"SEMPTY":      {1, 1, true},
	"SDEMPTY":     {1, 1, true},
	"SREMPTY":     {1, 1, true},
	"SDEQ":        {2, 1, true},
	"DICTEMPTY":   {1, 1, true},

	// dictionaries with fixed arity
	"DICTSET":     {4, 1, false},
	"DICTISET":    {4, 1, false},
	"DICTUSET":    {4, 1, false},
	"DICTSETB":    {4, 1, false},
	"DICTISETB":   {4, 1, false},
	"DICTUSETB":   {4, 1, false},
	"DICTSETREF":  {4, 1, false},
	"DICTISETREF": {4, 1, false},
	"DICTUSETREF": {4, 1, false},
	"DICTDEL":     {3, 2, false},
	"DICTIDEL":    {3, 2, false},
	"DICTUDEL":    {3, 2, false},

	// hashes and signatures
	"HASHCU":   {1, 1, true},
	"HASHSU":   {1, 1, true},
	"SHA256U":  {1, 1, false},
	"CHKSIGNU": {3, 1, false},
	"CHKSIGNS": {3, 1, false},

	// blockchain context
	"NOW":         {0, 1, true},
	"MYADDR":      {0, 1, true},
	"BALANCE":     {0, 1, true},
	"LTIME":       {0, 1, true},
	"BLOCKLT":     {0, 1, true},
	"RANDSEED":    {0, 1, true},
	"RANDU256":    {0, 1, false},
	"RAND":        {1, 1, false},
	"SETRAND":     {1, 0, false},
	"ADDRAND":     {1, 0, false},
	"ACCEPT":      {0, 0, false},
	"COMMIT":      {0, 0, false},
	"SETGASLIMIT": {1, 0, false},
	"BUYGAS":      {1, 0, false},
	"GASTOGRAM":   {1, 1, false},
	"GRAMTOGAS":   {1, 1, false},
	"SETCODE":     {1, 0, false},
	"SENDRAWMSG":  {2, 0, false},
	"RAWRESERVE":  {2, 0, false},
	"CDATASIZE":   {2, 3, false},
	"SDATASIZE":   {2, 3, false},

	// misc
	"STRDUMP": {1, 1, false},
	"DUMPSTK": {0, 0, false},
	"DEPTH":   {0, 1, true},
	"PICK":    {1, 1, false},
	"BLKSWX":  {2, 0, false},
	"ROLLX":   {1, 0, false},
}

// argEffects maps mnemonics whose arity is fixed but which carry an
// argument (bit width, literal, index).
var argEffects = map[string]effect{
	"PUSHINT":      {0, 1, true},
	"PUSHSLICE":    {0, 1, true},
	"STSLICECONST": {1, 1, false},
	"ADDCONST":     {1, 1, false},
	"MULCONST":     {1, 1, false},
	"EQINT":        {1, 1, true},
	"NEQINT":       {1, 1, true},
	"GTINT":        {1, 1, true},
	"LESSINT":      {1, 1, true},
	"FITS":         {1, 1, false},
	"UFITS":        {1, 1, false},
	"MODPOW2":      {1, 1, false},
	"STU":          {2, 1, false},
	"STI":          {2, 1, false},
	"STUR":         {2, 1, false},
	"STIR":         {2, 1, false},
	"LDU":          {1, 2, false},
	"LDI":          {1, 2, false},
	"PLDU":         {1, 1, false},
	"PLDI":         {1, 1, false},
	"LDSLICE":      {1, 2, false},
	"INDEX_EXCEP":  {1, 1, false},
	"INDEX_NOEXCEP": {1, 1, true},
	"SETINDEX":     {2, 1, false},
	"SETINDEXQ":    {2, 1, false},
	"GETPARAM":     {0, 1, true},
	"PUSHPOW2":     {0, 1, true},
	"PUSHPOW2DEC":  {0, 1, true},
}

// Gen parses a textual mnemonic into a GenOp with the effect declared
// by the tables above. A trailing "; comment" is preserved.
// It panics on an unknown mnemonic: that is a back-end bug.
func Gen(cmd string) *GenOp {
	op, arg, comment := splitCmd(cmd)
	if op == "" {
		panic("tvm: empty mnemonic")
	}

	if eff, ok := lookupEffect(op, arg); ok {
		g := NewGenOp(op, arg, eff.take, eff.ret, eff.pure)
		g.Comment = comment
		return g
	}
	panic(fmt.Sprintf("tvm: unknown mnemonic %q", cmd))
}

func lookupEffect(op, arg string) (effect, bool) {
	if eff, ok := fixedEffects[op]; ok {
		return eff, true
	}
	if eff, ok := argEffects[op]; ok {
		return eff, true
	}
	switch op {
	case "TUPLE":
		n := mustAtoi(arg)
		return effect{n, 1, false}, true
	case "UNTUPLE":
		n := mustAtoi(arg)
		return effect{1, n, false}, true
	case "PAIR":
		return effect{2, 1, false}, true
	case "LSHIFT", "RSHIFT":
		// with an argument the shift amount is immediate
		if arg != "" {
			return effect{1, 1, false}, true
		}
		return effect{2, 1, false}, true
	}
	return effect{}, false
}

// throwEffects declares the effects of the exception family.
var throwEffects = map[string]effect{
	"THROW":      {0, 0, false},
	"THROWIF":    {1, 0, false},
	"THROWIFNOT": {1, 0, false},
	"THROWANY":   {1, 0, false},
	"THROWARG":   {1, 0, false},
}

// MakeTHROW parses an exception mnemonic into a Throw node.
func MakeTHROW(cmd string) *Throw {
	op, arg, comment := splitCmd(cmd)
	eff, ok := throwEffects[op]
	if !ok {
		panic(fmt.Sprintf("tvm: unknown throw mnemonic %q", cmd))
	}
	g := NewGenOp(op, arg, eff.take, eff.ret, false)
	g.Comment = comment
	return &Throw{Gen: *g}
}

// Asym parses an asymmetric mnemonic into an AsymGen carrying its
// (take, retMin, retMax) envelope. It panics on an unknown mnemonic.
func Asym(cmd string) *AsymGen {
	word := cmd
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		word = cmd[:i]
	}

	switch word {
	case "CONFIGPARAM", "NULLSWAPIF", "NULLSWAPIFNOT":
		return NewAsymGen(cmd, 1, 1, 2)
	case "LDDICTQ", "LDIQ", "LDUQ", "LDMSGADDRQ":
		return NewAsymGen(cmd, 1, 2, 3)
	case "CDATASIZEQ", "SDATASIZEQ":
		return NewAsymGen(cmd, 2, 1, 4)
	}

	for _, key := range []string{"", "I", "U"} {
		for _, op := range []string{"MIN", "MAX"} {
			for _, suf := range []string{"", "REF"} {
				if word == "DICT"+key+op+suf {
					return NewAsymGen(cmd, 2, 1, 3)
				}
				if word == "DICT"+key+"REM"+op+suf {
					return NewAsymGen(cmd, 2, 2, 3)
				}
			}
		}
		for _, suf := range []string{"", "REF"} {
			if word == "DICT"+key+"GET"+suf {
				return NewAsymGen(cmd, 3, 1, 2)
			}
		}
		for _, op := range []string{"GETNEXT", "GETNEXTEQ", "GETPREV", "GETPREVEQ"} {
			if word == "DICT"+key+op {
				return NewAsymGen(cmd, 3, 1, 3)
			}
		}
		for _, op := range []string{"SETGET", "ADDGET", "REPLACEGET"} {
			for _, suf := range []string{"", "REF", "B"} {
				if word == "DICT"+key+op+suf {
					return NewAsymGen(cmd, 4, 2, 3)
				}
			}
		}
		for _, op := range []string{"ADD", "REPLACE"} {
			for _, suf := range []string{"", "REF", "B"} {
				if word == "DICT"+key+op+suf {
					return NewAsymGen(cmd, 4, 1, 2)
				}
			}
		}
	}
	panic(fmt.Sprintf("tvm: unknown asymmetric mnemonic %q", cmd))
}

func splitCmd(cmd string) (op, arg, comment string) {
	if i := strings.Index(cmd, ";"); i >= 0 {
		comment = strings.TrimSpace(cmd[i+1:])
		cmd = cmd[:i]
	}
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", "", comment
	}
	op = fields[0]
	arg = strings.Join(fields[1:], " ")
	return op, arg, comment
}

func mustAtoi(s string) int {
	n := 0
	if s == "" {
		panic("tvm: missing numeric argument")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			panic(fmt.Sprintf("tvm: bad numeric argument %q", s))
		}
		n = n*10 + int(c-'0')
	}
	return n
}
