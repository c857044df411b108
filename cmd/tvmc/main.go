// tvmc lowers a decorated contract tree to Target-VM assembly.
//
// The front end (parser, type checker) hands the back end an
// in-memory tree; this driver builds a small demonstration contract
// and prints the generated assembly, which is useful for inspecting
// lowering and optimizer behaviour.
//
// Usage:
//
//	tvmc [-o output.code] [-v]
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/likenty/tvmc/compiler"
)

func main() {
	output := flag.String("o", "", "output assembly file (default: stdout)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tvmc: %v\n", err)
			os.Exit(1)
		}
		log = dev
	}

	contract := demoContract()
	pragma := compiler.PragmaHelper{AbiVer: compiler.AbiV2_1, HaveTime: true}
	asm, err := compiler.CompileContract(contract, pragma, compiler.ContractUsage{}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tvmc: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(asm)
		return
	}
	if err := os.WriteFile(*output, []byte(asm), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "tvmc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tvmc: wrote %s\n", *output)
}

// demoContract is a small counter contract: one state variable, one
// public mutator and a getter-style public reader.
func demoContract() *compiler.ContractDefinition {
	counter := &compiler.VariableDeclaration{Name: "counter", Type: compiler.Uint(64)}

	add := &compiler.FunctionDefinition{
		Name:       "add",
		Visibility: compiler.VisibilityPublic,
		Mutability: compiler.MutabilityNonPayable,
		Params: []*compiler.VariableDeclaration{
			{Name: "delta", Type: compiler.Uint(64)},
		},
	}
	add.Body = &compiler.Block{
		Statements: []compiler.Statement{
			&compiler.ExpressionStatement{
				Expr: &compiler.Assignment{
					Op:  "+=",
					LHS: compiler.Ref(counter),
					RHS: compiler.Ref(add.Params[0]),
				},
			},
		},
	}

	get := &compiler.FunctionDefinition{
		Name:       "get",
		Visibility: compiler.VisibilityPublic,
		Mutability: compiler.MutabilityView,
		RetParams: []*compiler.VariableDeclaration{
			{Name: "", Type: compiler.Uint(64)},
		},
	}
	get.Body = &compiler.Block{
		Statements: []compiler.Statement{
			&compiler.ReturnStatement{
				Expr:     compiler.Ref(counter),
				Function: get,
			},
		},
	}

	c := &compiler.ContractDefinition{
		Name:           "Counter",
		StateVariables: []*compiler.VariableDeclaration{counter},
		Functions:      []*compiler.FunctionDefinition{add, get},
	}
	add.Contract = c
	get.Contract = c
	return c
}
