package main

import (
	"fmt"
	"os"
	"strconv"

	"ftcp/constants"
	"ftcp/logging"
	"ftcp/networking"
	"ftcp/server/receiver"

	"github.com/akamensky/argparse"
	"github.com/google/uuid"
)

func main() {
	args := argparse.NewParser("ftcp-server", "FTCP file transfer server")

	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Port to listen on",
		Default: constants.DEFAULT_PORT})
	dir := args.String("d", "dir", &argparse.Options{Required: false, Help: "Output directory for received files",
		Default: "."})
	verbose := args.Flag("v", "verbose", &argparse.Options{Help: "Verbose logging"})
	logFile := args.String("l", "log", &argparse.Options{Required: false, Help: "Log to file"})

	if err := args.Parse(os.Args); err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	log, closeLog, err := logging.New(*verbose, *logFile)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer closeLog()

	if err := os.MkdirAll(*dir, 0755); err != nil {
		log.Error().Err(err).Str("dir", *dir).Msg("cannot create output directory")
		os.Exit(1)
	}
	log.Info().Str("dir", *dir).Msg("output directory ready")

	l, err := networking.Listen("0.0.0.0:" + strconv.Itoa(*port))
	if err != nil {
		log.Error().Err(err).Int("port", *port).Msg("failed to bind listening socket")
		os.Exit(1)
	}
	defer l.Close()
	log.Info().Int("port", *port).Msg("listening")

	// One client, one transfer, then exit. A long-running accept loop is a
	// future protocol-compatible extension.
	stream, err := networking.Accept(l)
	if err != nil {
		log.Error().Err(err).Msg("failed to accept connection")
		os.Exit(1)
	}
	defer stream.Close()

	log = log.With().
		Str("client", stream.RemoteAddr().String()).
		Str("transfer", uuid.NewString()).
		Logger()
	log.Info().Msg("client connected")

	if err := receiver.Receive(stream, *dir, log); err != nil {
		log.Error().Err(err).Msg("transfer failed")
		os.Exit(1)
	}
	log.Info().Msg("transfer completed successfully")
}
