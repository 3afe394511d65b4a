package ifinv

import "golang.org/x/net/bpf"

// bootpsFilter assembles the classic BPF program every capture handle is
// installed with (§6): accept UDP datagrams destined for the BOOTPS port
// that did not originate from this interface's own MAC (loop avoidance
// against a relay's own synthesized frames echoing back on a bridge).
// The frame layout assumed is untagged Ethernet II + IPv4 + UDP.
func bootpsFilter(bootpsPort uint16, ifaceMAC [6]byte) ([]bpf.RawInstruction, error) {
	const (
		etherTypeOff = 12
		ipProtoOff   = 14 + 9  // IPv4 protocol field
		udpDstOff    = 14 + 20 + 2 // UDP header, dst port
		ethSrcOff    = 6
	)

	srcHi := uint32(ifaceMAC[0])<<24 | uint32(ifaceMAC[1])<<16 | uint32(ifaceMAC[2])<<8 | uint32(ifaceMAC[3])
	srcLo := uint32(ifaceMAC[4])<<8 | uint32(ifaceMAC[5])

	insns := []bpf.Instruction{
		// Load ethertype; must be IPv4 (0x0800).
		bpf.LoadAbsolute{Off: etherTypeOff, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipTrue: 1},
		bpf.RetConstant{Val: 0},

		// IP protocol must be UDP (17).
		bpf.LoadAbsolute{Off: ipProtoOff, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 1},
		bpf.RetConstant{Val: 0},

		// UDP destination port must be bootps.
		bpf.LoadAbsolute{Off: udpDstOff, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(bootpsPort), SkipTrue: 1},
		bpf.RetConstant{Val: 0},

		// Source MAC high 4 bytes must NOT equal our own (loop guard).
		bpf.LoadAbsolute{Off: ethSrcOff, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: srcHi, SkipTrue: 0, SkipFalse: 3},
		bpf.LoadAbsolute{Off: ethSrcOff + 4, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: srcLo, SkipTrue: 0, SkipFalse: 1},
		bpf.RetConstant{Val: 0},

		bpf.RetConstant{Val: 0xffff},
	}

	return bpf.Assemble(insns)
}
