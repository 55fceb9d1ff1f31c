package packet

import "github.com/juju/errors"

// Frames is one packet encoded in both forms with the same sequence number.
type Frames struct {
	Kind   Kind
	Seq    uint16
	Binary []byte
	Text   []byte
}

// Registry owns the live packet of every kind and the sequence counters.
// Not safe for concurrent use.
type Registry struct {
	packets [KindCount]Packet
	seq     [KindCount]uint16
}

func NewRegistry() *Registry {
	self := &Registry{}
	for _, k := range AllKinds() {
		self.packets[k] = New(k)
	}
	return self
}

func (self *Registry) Get(k Kind) Packet { return self.packets[k] }

// Set replaces live packet of p.Kind(), used for relayed counterpart frames.
func (self *Registry) Set(p Packet) { self.packets[p.Kind()] = p }

// Seq returns the number the next Encode of k will carry.
func (self *Registry) Seq(k Kind) uint16 { return self.seq[k] }

func (self *Registry) Status(n Node) *Status { return self.packets[n.StatusKind()].(*Status) }
func (self *Registry) Housekeeping(n Node) *Housekeeping { return self.packets[n.HousekeepingKind()].(*Housekeeping) }
func (self *Registry) Command(n Node) *Command { return self.packets[n.CommandKind()].(*Command) }

// Encode serializes live packet of kind k and advances its counter by one.
// On error the counter is left unchanged.
func (self *Registry) Encode(k Kind) (Frames, error) {
	if !k.Valid() {
		return Frames{}, errors.Annotatef(ErrUnknownPacket, "kind=%d", uint8(k))
	}
	p := self.packets[k]
	seq := self.seq[k]
	bin, err := EncodeBinary(seq, p)
	if err != nil {
		return Frames{}, err
	}
	text, err := EncodeText(seq, p)
	if err != nil {
		return Frames{}, err
	}
	self.seq[k]++
	return Frames{Kind: k, Seq: seq, Binary: bin, Text: text}, nil
}
