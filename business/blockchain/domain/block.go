// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the part of a block header the price refresh needs.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
}

// ConnectionState represents the state of a blockchain connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// GaugeValue is the metric encoding of the state.
func (s ConnectionState) GaugeValue() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	default:
		return 0
	}
}

// ConnectionStatus contains detailed connection information.
type ConnectionStatus struct {
	State      ConnectionState
	LastBlock  uint64
	LastSeen   time.Time
	Reconnects int
	UsingHTTP  bool
}
