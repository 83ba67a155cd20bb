// Package relayer implements the gossip layer submitters and the pool
// executor use to exchange transact instructions and their resulting
// receipts, generalizing internal/p2p/node.go's libp2p host/GossipSub/DHT
// wiring from CCoin's block/transaction/task topics down to the two this
// pool needs.
package relayer

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/ccoin/privacypool/pool"
)

// Topic names. A submitter gossips an unconfirmed instruction on
// SubmitTopic before handing it to the local Executor; the executor (or
// whichever peer dispatched it first) gossips the resulting Event on
// AcceptedTopic once Dispatch succeeds. There is no block or task topic:
// this pool has no chain of its own to gossip blocks for, and no PoUW
// work to distribute.
const (
	rendezvous    = "privacypool/rendezvous"
	SubmitTopic   = "privacypool/submit"
	AcceptedTopic = "privacypool/accepted"
)

// SubmitHandler is invoked for every instruction gossiped on SubmitTopic
// that didn't originate from this node.
type SubmitHandler func(ctx context.Context, ix pool.Instruction) error

// AcceptedHandler is invoked for every receipt gossiped on AcceptedTopic
// that didn't originate from this node.
type AcceptedHandler func(ctx context.Context, receipt *pool.Receipt) error

// PeerInfo mirrors what the teacher's p2p.Node tracks per connected peer.
type PeerInfo struct {
	ID          peer.ID
	Addrs       []multiaddr.Multiaddr
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Config holds the relayer's libp2p configuration.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
	MaxPeers       int
	EnableMDNS     bool
}

// DefaultConfig mirrors p2p.DefaultConfig, with the pool's own default
// listen port.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9100"},
		MaxPeers:    50,
		EnableMDNS:  true,
	}
}

// Node is one relayer's gossip endpoint: a libp2p host, a kademlia DHT for
// wide-area peer discovery, and a GossipSub subscription on each of the
// pool's two topics.
type Node struct {
	mu sync.RWMutex

	host      host.Host
	dht       *dht.IpfsDHT
	pubsub    *pubsub.PubSub
	discovery *drouting.RoutingDiscovery

	submitTopic   *pubsub.Topic
	acceptedTopic *pubsub.Topic
	submitSub     *pubsub.Subscription
	acceptedSub   *pubsub.Subscription

	submitHandler   SubmitHandler
	acceptedHandler AcceptedHandler

	peers    map[peer.ID]*PeerInfo
	maxPeers int

	log *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNode creates and starts the libp2p host, joins both topics, and
// kicks off background peer discovery. Call Start to begin delivering
// gossip to the registered handlers.
func NewNode(ctx context.Context, cfg *Config, log *logrus.Entry) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("relayer: generate key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("relayer: invalid listen address %q: %w", addr, err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("relayer: create host: %w", err)
	}

	kadDHT, err := dht.New(nodeCtx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("relayer: create dht: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		kadDHT.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("relayer: create pubsub: %w", err)
	}

	n := &Node{
		host:     h,
		dht:      kadDHT,
		pubsub:   ps,
		peers:    make(map[peer.ID]*PeerInfo),
		maxPeers: cfg.MaxPeers,
		log:      log,
		ctx:      nodeCtx,
		cancel:   cancel,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    n.onPeerConnected,
		DisconnectedF: n.onPeerDisconnected,
	})

	if err := kadDHT.Bootstrap(nodeCtx); err != nil {
		n.Close()
		return nil, fmt.Errorf("relayer: bootstrap dht: %w", err)
	}

	for _, addr := range cfg.BootstrapPeers {
		if err := n.connectToPeer(addr); err != nil {
			n.log.WithError(err).Warnf("relayer: bootstrap peer %s unreachable", addr)
		}
	}

	if cfg.EnableMDNS {
		if err := n.setupMDNS(); err != nil {
			n.log.WithError(err).Warn("relayer: mDNS setup failed")
		}
	}

	n.discovery = drouting.NewRoutingDiscovery(kadDHT)

	if err := n.joinTopics(); err != nil {
		n.Close()
		return nil, fmt.Errorf("relayer: join topics: %w", err)
	}

	return n, nil
}

func (n *Node) joinTopics() error {
	var err error
	n.submitTopic, err = n.pubsub.Join(SubmitTopic)
	if err != nil {
		return fmt.Errorf("join submit topic: %w", err)
	}
	n.submitSub, err = n.submitTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe submit topic: %w", err)
	}

	n.acceptedTopic, err = n.pubsub.Join(AcceptedTopic)
	if err != nil {
		return fmt.Errorf("join accepted topic: %w", err)
	}
	n.acceptedSub, err = n.acceptedTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe accepted topic: %w", err)
	}
	return nil
}

// Start spawns the gossip consumer and peer-maintenance loops. It
// returns immediately; call Close to stop them.
func (n *Node) Start() {
	go n.processSubmit()
	go n.processAccepted()
	go n.maintainPeers()
}

// SetSubmitHandler registers the callback invoked for incoming submit
// gossip. Must be called before Start to avoid a race with the first
// delivered message.
func (n *Node) SetSubmitHandler(h SubmitHandler) { n.submitHandler = h }

// SetAcceptedHandler registers the callback invoked for incoming accepted
// gossip.
func (n *Node) SetAcceptedHandler(h AcceptedHandler) { n.acceptedHandler = h }

func (n *Node) processSubmit() {
	for {
		msg, err := n.submitSub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.touchPeer(msg.ReceivedFrom)

		ix, err := pool.UnmarshalBinary(msg.Data)
		if err != nil {
			n.log.WithError(err).Warn("relayer: malformed submit gossip")
			continue
		}
		if n.submitHandler == nil {
			continue
		}
		if err := n.submitHandler(n.ctx, ix); err != nil {
			n.log.WithError(err).Warn("relayer: submit handler error")
		}
	}
}

func (n *Node) processAccepted() {
	for {
		msg, err := n.acceptedSub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.touchPeer(msg.ReceivedFrom)

		receipt, err := decodeReceipt(msg.Data)
		if err != nil {
			n.log.WithError(err).Warn("relayer: malformed accepted gossip")
			continue
		}
		if n.acceptedHandler == nil {
			continue
		}
		if err := n.acceptedHandler(n.ctx, receipt); err != nil {
			n.log.WithError(err).Warn("relayer: accepted handler error")
		}
	}
}

func (n *Node) touchPeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.peers[id]; ok {
		p.LastSeen = time.Now()
	}
}

// BroadcastSubmit gossips ix to the network ahead of (or instead of)
// sending it directly to a known executor.
func (n *Node) BroadcastSubmit(ix pool.Instruction) error {
	data, err := ix.MarshalBinary()
	if err != nil {
		return fmt.Errorf("relayer: marshal instruction: %w", err)
	}
	return n.submitTopic.Publish(n.ctx, data)
}

// BroadcastAccepted gossips a successful Dispatch's receipt so other
// relayers can update their local view of the pool without replaying the
// instruction themselves.
func (n *Node) BroadcastAccepted(receipt *pool.Receipt) error {
	return n.acceptedTopic.Publish(n.ctx, encodeReceipt(receipt))
}

func (n *Node) maintainPeers() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.discoverPeers()
			n.pruneStale()
		}
	}
}

func (n *Node) discoverPeers() {
	n.mu.RLock()
	current := len(n.peers)
	n.mu.RUnlock()
	if current >= n.maxPeers {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	peerChan, err := n.discovery.FindPeers(ctx, rendezvous)
	if err != nil {
		return
	}
	for p := range peerChan {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		n.mu.RLock()
		_, exists := n.peers[p.ID]
		n.mu.RUnlock()
		if !exists && len(n.peers) < n.maxPeers {
			if err := n.host.Connect(ctx, p); err == nil {
				n.addPeer(p.ID, p.Addrs)
			}
		}
	}
}

func (n *Node) pruneStale() {
	n.mu.Lock()
	defer n.mu.Unlock()
	staleThreshold := time.Now().Add(-5 * time.Minute)
	for id, p := range n.peers {
		if p.LastSeen.Before(staleThreshold) {
			n.host.Network().ClosePeer(id)
			delete(n.peers, id)
		}
	}
}

func (n *Node) addPeer(id peer.ID, addrs []multiaddr.Multiaddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = &PeerInfo{ID: id, Addrs: addrs, ConnectedAt: time.Now(), LastSeen: time.Now()}
}

func (n *Node) onPeerConnected(_ network.Network, conn network.Conn) {
	n.addPeer(conn.RemotePeer(), []multiaddr.Multiaddr{conn.RemoteMultiaddr()})
}

func (n *Node) onPeerDisconnected(_ network.Network, conn network.Conn) {
	n.mu.Lock()
	delete(n.peers, conn.RemotePeer())
	n.mu.Unlock()
}

func (n *Node) setupMDNS() error {
	service := mdns.NewMdnsService(n.host, "privacypool-local", &mdnsNotifee{node: n})
	return service.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.node.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(m.node.ctx, 5*time.Second)
	defer cancel()
	m.node.host.Connect(ctx, pi)
}

func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	peerInfo, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()
	if err := n.host.Connect(ctx, *peerInfo); err != nil {
		return err
	}
	n.addPeer(peerInfo.ID, peerInfo.Addrs)
	return nil
}

// ID returns the node's own peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addrs returns the node's listen addresses.
func (n *Node) Addrs() []multiaddr.Multiaddr { return n.host.Addrs() }

// PeerCount returns the number of peers currently tracked as connected.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Close tears down the subscriptions, the DHT, and the libp2p host.
func (n *Node) Close() error {
	n.cancel()
	if n.submitSub != nil {
		n.submitSub.Cancel()
	}
	if n.acceptedSub != nil {
		n.acceptedSub.Cancel()
	}
	if n.dht != nil {
		n.dht.Close()
	}
	return n.host.Close()
}
