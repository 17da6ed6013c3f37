package device

import "testing"

func TestOperandHostExtraction(t *testing.T) {
	x := mustTensor(t, []float32{1, 2, 3, 4}, []int64{2, 2})

	op := HostOperand(x)
	if op.Kind() != OperandHost {
		t.Fatalf("Kind = %s, want host", op.Kind())
	}

	got, err := op.Host()
	if err != nil {
		t.Fatalf("Host: %v", err)
	}

	if got != x {
		t.Fatal("host operand should return the wrapped tensor")
	}
}

func TestOperandDeviceExtraction(t *testing.T) {
	emu := NewEmulator()
	x := mustTensor(t, []float32{1, 2, 3, 4}, []int64{2, 2})

	err := WithDevice(emu, ArchWormholeB0, 1, func(dev Device) error {
		remote, err := Upload(emu, dev, x, TransferOptions{DType: DTypeFloat32})
		if err != nil {
			return err
		}

		op := DeviceOperand(remote)
		if op.Kind() != OperandDevice {
			t.Fatalf("Kind = %s, want device", op.Kind())
		}

		got, err := op.Host()
		if err != nil {
			return err
		}

		if !equalShape(got.Shape(), []int64{1, 1, 2, 2}) {
			t.Fatalf("shape = %v, want [1 1 2 2]", got.Shape())
		}

		return nil
	})
	if err != nil {
		t.Fatalf("device operand: %v", err)
	}
}

func TestZeroOperandIsInvalid(t *testing.T) {
	var op Operand
	if _, err := op.Host(); err == nil {
		t.Fatal("expected error extracting zero operand")
	}
}

func TestPeek(t *testing.T) {
	x := mustTensor(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, []int64{8})

	got, err := Peek(HostOperand(x), 3, 1, 2)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}

	want := []float32{1, 3, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Peek = %v, want %v", got, want)
		}
	}

	if _, err := Peek(HostOperand(x), 5, 0, 2); err == nil {
		t.Fatal("expected out-of-range error")
	}

	if _, err := Peek(HostOperand(x), 1, 0, 0); err == nil {
		t.Fatal("expected invalid stride error")
	}
}
