package capture

import (
	"golang.org/x/net/bpf"
)

const etherTypeIPv4 = 0x0800

// ipv4Filter accepts Ethernet frames carrying IPv4, truncated to snapLen.
// Equivalent to the libpcap expression "ip" on DLT_EN10MB.
func ipv4Filter(snapLen int) ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 1},
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	})
}
