package retrieval

import "math"

// cosine 余弦相似度；任一向量为零向量时返回 0
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// maximalMarginalRelevance 从候选中贪心选出 k 个，兼顾与查询的相关性和彼此之间的差异性。
// lambda=1 退化为按相似度排序，lambda=0 只看多样性。返回候选下标，按选中顺序排列。
func maximalMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosine(query, c)
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))
	// maxSim[i] 候选 i 与已选集合的最大相似度
	maxSim := make([]float64, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
		for i := range candidates {
			if picked[i] {
				continue
			}
			if s := cosine(candidates[i], candidates[best]); len(selected) == 1 || s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}
	return selected
}
