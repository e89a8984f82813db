package policy

import "sync"

// LabelPool allocates and releases VLAN tags and MAC addresses from a
// fixed pool attached to a shared-NIC component (spec.md §4.4: "allocate
// a MAC and a VLAN tag from that component's label pool").
type LabelPool struct {
	mu sync.Mutex

	freeVLANs []int
	usedVLANs map[int]bool

	freeMACs []string
	usedMACs map[string]bool
}

// NewLabelPool builds a pool seeded with the given VLAN tags and MAC
// addresses, typically copied from a Delegation's NodeDelegation.
func NewLabelPool(vlans []int, macs []string) *LabelPool {
	p := &LabelPool{
		usedVLANs: make(map[int]bool),
		usedMACs:  make(map[string]bool),
	}
	p.freeVLANs = append(p.freeVLANs, vlans...)
	p.freeMACs = append(p.freeMACs, macs...)
	return p
}

// AllocateVLAN pops a free VLAN tag, or reports false if the pool is
// exhausted.
func (p *LabelPool) AllocateVLAN() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeVLANs) == 0 {
		return 0, false
	}
	vlan := p.freeVLANs[0]
	p.freeVLANs = p.freeVLANs[1:]
	p.usedVLANs[vlan] = true
	return vlan, true
}

// ReleaseVLAN returns a previously allocated VLAN tag to the pool.
func (p *LabelPool) ReleaseVLAN(vlan int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.usedVLANs[vlan] {
		delete(p.usedVLANs, vlan)
		p.freeVLANs = append(p.freeVLANs, vlan)
	}
}

// AllocateMAC pops a free MAC address, or reports false if exhausted.
func (p *LabelPool) AllocateMAC() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeMACs) == 0 {
		return "", false
	}
	mac := p.freeMACs[0]
	p.freeMACs = p.freeMACs[1:]
	p.usedMACs[mac] = true
	return mac, true
}

// ReleaseMAC returns a previously allocated MAC address to the pool.
func (p *LabelPool) ReleaseMAC(mac string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.usedMACs[mac] {
		delete(p.usedMACs, mac)
		p.freeMACs = append(p.freeMACs, mac)
	}
}
