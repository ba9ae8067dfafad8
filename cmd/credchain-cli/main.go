package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"credchain/crypto"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: credchain-cli <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  genkey           generate a key pair and print the address")
	fmt.Fprintln(os.Stderr, "  addr <hexkey>    derive the address for a private key")
	os.Exit(2)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	switch args[0] {
	case "genkey":
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "genkey: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("private: %s\n", hex.EncodeToString(key.Bytes()))
		fmt.Printf("address: %s\n", key.PubKey().Address())
	case "addr":
		if len(args) != 2 {
			usage()
		}
		raw, err := hex.DecodeString(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "addr: invalid hex key: %v\n", err)
			os.Exit(1)
		}
		key, err := crypto.PrivateKeyFromBytes(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "addr: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key.PubKey().Address())
	default:
		usage()
	}
}
