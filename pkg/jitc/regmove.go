package jitc

import "github.com/gowasm/eeivm/pkg/asmx86"

// popGPR pops the top operand-stack word into reg as a 64-bit value.
func (w *funcWriter) popGPR(reg asmx86.Reg) {
	w.asm.MovRegMem64(reg, regFrame, w.pop())
}

// pushGPR pushes reg's full 64-bit value onto the operand stack.
func (w *funcWriter) pushGPR(reg asmx86.Reg) {
	w.asm.MovMemReg64(regFrame, w.push(), reg)
}

// popSD/pushSD move an f64 (double) between the operand stack and an XMM
// register; popSS/pushSS do the same for f32, using the low 32 bits of
// the same 8-byte slot.
func (w *funcWriter) popSD(x asmx86.XMM) {
	w.asm.MovsdLoad(x, regFrame, w.pop())
}

func (w *funcWriter) pushSD(x asmx86.XMM) {
	w.asm.MovsdStore(regFrame, w.push(), x)
}

func (w *funcWriter) popSS(x asmx86.XMM) {
	w.asm.MovssLoad(x, regFrame, w.pop())
}

func (w *funcWriter) pushSS(x asmx86.XMM) {
	w.asm.MovssStore(regFrame, w.push(), x)
}
