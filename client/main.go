package main

import (
	"fmt"
	"os"
	"strconv"

	"ftcp/client/sender"
	"ftcp/constants"
	"ftcp/logging"
	"ftcp/networking"

	"github.com/akamensky/argparse"
	"github.com/google/uuid"
)

func main() {
	args := argparse.NewParser("ftcp-client", "FTCP file transfer client")

	host := args.String("a", "host", &argparse.Options{Required: true, Help: "Server hostname or IP address"})
	file := args.String("f", "file", &argparse.Options{Required: true, Help: "File to transfer"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Server port",
		Default: constants.DEFAULT_PORT})
	chunk := args.Int("c", "chunksize", &argparse.Options{Required: false, Help: "Chunk size in bytes",
		Default: constants.DEFAULT_CHUNK_SIZE})
	dscp := args.Int("q", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS",
		Default: constants.DEFAULT_DSCP})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Verbose logging"})
	logFile := args.String("l", "log", &argparse.Options{Required: false, Help: "Log to file"})

	if err := args.Parse(os.Args); err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	if *chunk <= 0 {
		fmt.Println("Chunk size must be positive")
		os.Exit(1)
	}

	log, closeLog, err := logging.New(*verbose, *logFile)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer closeLog()
	log = log.With().Str("transfer", uuid.NewString()).Logger()

	addr := *host + ":" + strconv.Itoa(*port)
	stream, err := networking.Connect(addr, *dscp, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect")
		os.Exit(1)
	}
	defer stream.Close()
	log.Info().Str("address", addr).Msg("connected")

	if err := sender.Send(stream, *file, uint32(*chunk), log); err != nil {
		log.Error().Err(err).Msg("file transfer failed")
		os.Exit(1)
	}
	log.Info().Msg("file transfer completed successfully")
}
