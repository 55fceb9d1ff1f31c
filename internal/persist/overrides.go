package persist

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/skybus/internal/config"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

// Overrides are runtime changes made by commands, re-applied at start
// on top of the config file.
type Overrides struct {
	Mode   string            `json:"mode,omitempty"`
	Params map[string]string `json:"params,omitempty"`
	// Routing is routed kind names by table name.
	Routing map[string][]string `json:"routing,omitempty"`
}

func (self *Overrides) MarshalBinary() ([]byte, error) { return json.Marshal(self) }
func (self *Overrides) UnmarshalBinary(b []byte) error {
	var o Overrides
	if err := json.Unmarshal(b, &o); err != nil {
		return errors.Annotate(err, "overrides")
	}
	*self = o
	return nil
}

func (self *Overrides) Empty() bool {
	return self.Mode == "" && len(self.Params) == 0 && len(self.Routing) == 0
}

func (self *Overrides) SetMode(m packet.Mode) { self.Mode = m.String() }

func (self *Overrides) SetParam(key, value string) {
	if self.Params == nil {
		self.Params = make(map[string]string)
	}
	self.Params[strings.TrimSpace(key)] = strings.TrimSpace(value)
}

// SetRouting records current vector of one table.
func (self *Overrides) SetRouting(ch routing.Channel, v routing.Vector) {
	if self.Routing == nil {
		self.Routing = make(map[string][]string)
	}
	names := []string{}
	if s := v.String(); s != "" {
		names = strings.Split(s, ",")
	}
	self.Routing[ch.String()] = names
}

// Apply replays overrides onto cfg and tables. Entries no longer accepted
// (renamed key, removed kind) are logged and skipped.
// Returns stored mode if any.
func (self *Overrides) Apply(cfg *config.Config, tables *routing.Tables, log *log2.Log) (packet.Mode, bool) {
	keys := make([]string, 0, len(self.Params))
	for k := range self.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.SetParameter(k, self.Params[k]); err != nil {
			log.Errorf("overrides skip param err=%v", err)
		}
	}

	for table, names := range self.Routing {
		ch, err := routing.ChannelByName(table)
		if err != nil {
			log.Errorf("overrides skip routing err=%v", err)
			continue
		}
		var v routing.Vector
		for _, name := range names {
			k, err := packet.KindByName(name)
			if err != nil {
				log.Errorf("overrides skip routing table=%s err=%v", table, err)
				continue
			}
			v[k] = true
		}
		snap := tables.Snapshot()
		snap[ch] = v
		tables.Restore(snap)
	}

	if self.Mode == "" {
		return 0, false
	}
	m, ok := packet.ParseMode(self.Mode)
	if !ok {
		log.Errorf("overrides skip mode=%s", self.Mode)
	}
	return m, ok
}
