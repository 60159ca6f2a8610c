package fairness

import "testing"

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}
	if len(seed1) != 64 {
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestHashCommitment(t *testing.T) {
	seed := "test_seed_12345"

	hash1 := HashCommitment(seed)
	hash2 := HashCommitment(seed)

	if hash1 != hash2 {
		t.Error("HashCommitment() is not deterministic")
	}
	if len(hash1) != 64 {
		t.Errorf("HashCommitment() length = %v, want 64", len(hash1))
	}
}

func TestDraw_Range(t *testing.T) {
	serverSeed := GenerateSeed()

	for nonce := 0; nonce < 500; nonce++ {
		index, digest := Draw(serverSeed, "public-seed", nonce)
		if index < 0 || index > 36 {
			t.Fatalf("Draw() index = %v, want in [0,36]", index)
		}
		if len(digest) != 64 {
			t.Fatalf("Draw() digest length = %v, want 64", len(digest))
		}
	}
}

func TestDraw_Deterministic(t *testing.T) {
	serverSeed := "deterministic_test_seed"
	clientSeed := "deterministic_client_seed"
	nonce := 42

	idx1, digest1 := Draw(serverSeed, clientSeed, nonce)
	idx2, digest2 := Draw(serverSeed, clientSeed, nonce)
	idx3, digest3 := Draw(serverSeed, clientSeed, nonce)

	if idx1 != idx2 || idx2 != idx3 {
		t.Errorf("Draw() index is not deterministic: got %v, %v, %v", idx1, idx2, idx3)
	}
	if digest1 != digest2 || digest2 != digest3 {
		t.Errorf("Draw() digest is not deterministic")
	}
}

func TestDraw_KnownVector(t *testing.T) {
	zeroSeed := ""
	for i := 0; i < 64; i++ {
		zeroSeed += "0"
	}

	index, digest := Draw(zeroSeed, "roulette-public-seed", 1)
	if len(digest) != 64 {
		t.Fatalf("digest length = %v, want 64", len(digest))
	}
	if index < 0 || index > 36 {
		t.Fatalf("index = %v, want in [0,36]", index)
	}

	const wantDigest = "ca4c0421e84b703d6aa59dd8be62eb2e8aea11d29175dd511ec36bc613033715"
	if digest != wantDigest {
		t.Errorf("digest = %v, want %v", digest, wantDigest)
	}
	if index != 24 {
		t.Errorf("index = %v, want 24", index)
	}
}

func TestDraw_DifferentNonceDifferentDigest(t *testing.T) {
	serverSeed := "seed"
	clientSeed := "client"

	_, d1 := Draw(serverSeed, clientSeed, 1)
	_, d2 := Draw(serverSeed, clientSeed, 2)

	if d1 == d2 {
		t.Error("Draw() produced identical digests for different nonces")
	}
}

func TestVerify(t *testing.T) {
	serverSeed := GenerateSeed()
	commitment := HashCommitment(serverSeed)
	clientSeed := "verification_client_seed"
	nonce := 100

	index, _ := Draw(serverSeed, clientSeed, nonce)

	tests := []struct {
		name       string
		commitment string
		serverSeed string
		clientSeed string
		nonce      int
		index      int
		want       bool
	}{
		{"valid", commitment, serverSeed, clientSeed, nonce, index, true},
		{"wrong index", commitment, serverSeed, clientSeed, nonce, (index + 1) % 37, false},
		{"wrong commitment", "deadbeef", serverSeed, clientSeed, nonce, index, false},
		{"wrong seed", commitment, "some-other-seed-entirely", clientSeed, nonce, index, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.commitment, tt.serverSeed, tt.clientSeed, tt.nonce, tt.index)
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkDraw(b *testing.B) {
	serverSeed := "benchmark_server_seed"
	clientSeed := "benchmark_client_seed"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Draw(serverSeed, clientSeed, i)
	}
}

func BenchmarkGenerateSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSeed()
	}
}
