// Command fenrirctl is a thin CLI client for a fenrir server, adapted from
// the teacher's cmd/client/client.go: flag-driven request construction, a
// single reply read for request/response actions, and a blocking read loop
// that prints frames until the connection closes for streaming actions.
// Updated for the JSON-over-TCP protocol in place of the teacher's
// hand-packed binary frames.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"fenrir/internal/transport"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the fenrir server")
	action := flag.String("action", "submit", "action: submit|cancel|get|book|bbo|stream-market-data|stream-trades|dump")

	symbol := flag.String("symbol", "AAPL", "symbol")
	side := flag.String("side", "buy", "order side: buy|sell")
	orderType := flag.String("type", "limit", "order type: market|limit|ioc|fok")
	quantity := flag.String("qty", "1", "order quantity")
	price := flag.String("price", "", "limit price (required for limit/ioc/fok)")
	userID := flag.String("user", "", "user id")
	orderID := flag.String("order-id", "", "order id, for cancel/get")
	depth := flag.Int("depth", 10, "book snapshot depth")
	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("unable to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	switch strings.ToLower(*action) {
	case "submit":
		send(conn, transport.VerbSubmitOrder, transport.SubmitOrderRequest{
			Symbol: *symbol, Side: *side, Type: *orderType,
			Quantity: *quantity, Price: *price, UserID: *userID,
		})
		readOne(conn)
	case "cancel":
		send(conn, transport.VerbCancelOrder, transport.CancelOrderRequest{Symbol: *symbol, OrderID: *orderID})
		readOne(conn)
	case "get":
		send(conn, transport.VerbGetOrder, transport.GetOrderRequest{Symbol: *symbol, OrderID: *orderID})
		readOne(conn)
	case "book":
		send(conn, transport.VerbGetBookSnapshot, transport.GetBookSnapshotRequest{Symbol: *symbol, Depth: *depth})
		readOne(conn)
	case "bbo":
		send(conn, transport.VerbGetBBO, transport.GetBBORequest{Symbol: *symbol})
		readOne(conn)
	case "dump":
		send(conn, transport.VerbDumpBook, transport.DumpBookRequest{Symbol: *symbol})
		readOne(conn)
	case "stream-market-data":
		send(conn, transport.VerbStreamMarketData, transport.StreamRequest{Symbol: *symbol})
		streamForever(conn)
	case "stream-trades":
		send(conn, transport.VerbStreamTrades, transport.StreamRequest{Symbol: *symbol})
		streamForever(conn)
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(1)
	}
}

func send(conn net.Conn, verb transport.Verb, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("unable to encode request: %v", err)
	}
	env, err := json.Marshal(transport.Envelope{Type: verb, Payload: body})
	if err != nil {
		log.Fatalf("unable to encode envelope: %v", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(env)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		log.Fatalf("unable to write request: %v", err)
	}
	if _, err := conn.Write(env); err != nil {
		log.Fatalf("unable to write request: %v", err)
	}
}

func readOne(conn net.Conn) {
	env, ok := readFrame(conn)
	if !ok {
		return
	}
	printEnvelope(env)
}

func streamForever(conn net.Conn) {
	for {
		env, ok := readFrame(conn)
		if !ok {
			return
		}
		printEnvelope(env)
	}
}

func readFrame(conn net.Conn) (transport.Envelope, bool) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		if err != io.EOF {
			log.Printf("connection lost: %v", err)
		}
		return transport.Envelope{}, false
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		log.Printf("error reading frame: %v", err)
		return transport.Envelope{}, false
	}

	var env transport.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("error decoding envelope: %v", err)
		return transport.Envelope{}, false
	}
	return env, true
}

func printEnvelope(env transport.Envelope) {
	var pretty interface{}
	if err := json.Unmarshal(env.Payload, &pretty); err != nil {
		fmt.Printf("[%s] %s\n", env.Type, string(env.Payload))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("[%s]\n%s\n", env.Type, out)
}
